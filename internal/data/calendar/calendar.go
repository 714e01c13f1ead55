// Package calendar scrapes the investing.com economic calendar for the
// dashboard's upcoming-events panel.
package calendar

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/twquant/screener/pkg/config"
	"github.com/twquant/screener/pkg/httputil"
	"github.com/twquant/screener/pkg/logger"
	"github.com/twquant/screener/pkg/redis"
)

const defaultBaseURL = "https://www.investing.com/economic-calendar/"

// Event is one economic-calendar entry.
type Event struct {
	Time       time.Time `json:"time"`
	Country    string    `json:"country"`
	Name       string    `json:"name"`
	URL        string    `json:"url,omitempty"`
	Importance int       `json:"importance"` // 1 低 / 2 中 / 3 高
	Actual     string    `json:"actual,omitempty"`
	Forecast   string    `json:"forecast,omitempty"`
	Previous   string    `json:"previous,omitempty"`
}

// Scraper fetches and parses the economic calendar.
// 爬蟲失敗時降級為空日曆，不讓儀表板掛掉
type Scraper struct {
	http    *httputil.Client
	cache   *redis.Cache
	log     *logger.Logger
	baseURL string
	now     func() time.Time
}

// New creates a calendar scraper. A nil cache disables caching.
func New(cfg *config.Config, log *logger.Logger, cache *redis.Cache) *Scraper {
	return &Scraper{
		http:    httputil.NewWithTimeout(cfg, log, 15*time.Second),
		cache:   cache,
		log:     log,
		baseURL: defaultBaseURL,
		now:     time.Now,
	}
}

// Upcoming returns events from today through today+days with importance
// at or above minImportance. Scrape failures degrade to an empty slice
// with a warning.
func (s *Scraper) Upcoming(ctx context.Context, days, minImportance int) []Event {
	from := s.now().Truncate(24 * time.Hour)
	to := from.AddDate(0, 0, days)

	cacheKey := redis.CalendarKey(from.Format("2006-01-02"), to.Format("2006-01-02"))
	if s.cache != nil {
		var cached []Event
		if found, _ := s.cache.Get(ctx, cacheKey, &cached); found {
			return filterImportance(cached, minImportance)
		}
	}

	events, err := s.scrape(ctx, from, to)
	if err != nil {
		s.log.WithError(err).Warn("economic calendar scrape failed, returning empty calendar")
		return []Event{}
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, events, redis.TTLLong)
	}
	return filterImportance(events, minImportance)
}

func (s *Scraper) scrape(ctx context.Context, from, to time.Time) ([]Event, error) {
	resp, err := s.http.GetWithHeaders(ctx, s.baseURL, map[string]string{
		"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
		"Accept-Language": "zh-TW,zh;q=0.9,en-US;q=0.8,en;q=0.7",
	})
	if err != nil {
		return nil, fmt.Errorf("calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar returned HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("calendar parse failed: %w", err)
	}

	table := doc.Find("table#economicCalendarData")
	if table.Length() == 0 {
		return nil, fmt.Errorf("calendar table not found")
	}

	var events []Event
	table.Find("tr.js-event-item").Each(func(_ int, row *goquery.Selection) {
		event, ok := s.parseRow(row)
		if !ok {
			return
		}
		if event.Time.Before(from) || event.Time.After(to.AddDate(0, 0, 1)) {
			return
		}
		events = append(events, event)
	})

	s.log.WithField("events", len(events)).Debug("economic calendar scraped")
	return events, nil
}

func (s *Scraper) parseRow(row *goquery.Selection) (Event, bool) {
	name := strings.TrimSpace(row.Find("td.event").Text())
	if name == "" {
		return Event{}, false
	}

	event := Event{
		Name:       name,
		Country:    "Unknown",
		Importance: 1,
		Actual:     strings.TrimSpace(row.Find("td.bold").Text()),
		Forecast:   strings.TrimSpace(row.Find("td.fore").Text()),
		Previous:   strings.TrimSpace(row.Find("td.prev").Text()),
	}

	// 國家取旗幟圖示的 title 屬性
	if title, ok := row.Find("td.flagCur span").Attr("title"); ok && title != "" {
		event.Country = title
	}

	if href, ok := row.Find("td.event a").Attr("href"); ok && href != "" {
		event.URL = "https://www.investing.com" + href
	}

	// 重要性 = 填滿的 bull 圖示數
	if bulls := row.Find("td.sentiment i.grayFullBullishIcon").Length(); bulls > 0 {
		event.Importance = bulls
	}

	// 日期在 data-event-datetime 屬性: "2025/10/30 08:00:00"
	if raw, ok := row.Attr("data-event-datetime"); ok {
		if t, err := time.Parse("2006/01/02 15:04:05", raw); err == nil {
			event.Time = t
		}
	}
	if event.Time.IsZero() {
		event.Time = s.now()
	}

	return event, true
}

func filterImportance(events []Event, min int) []Event {
	if min <= 1 {
		return events
	}
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if e.Importance >= min {
			out = append(out, e)
		}
	}
	return out
}
