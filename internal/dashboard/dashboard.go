// Package dashboard assembles the market-overview snapshot: whole-market
// trading totals, institutional-investor flows, index-level technical
// indicators, and upcoming economic-calendar events.
package dashboard

import (
	"context"
	"time"

	"github.com/twquant/screener/internal/data/calendar"
	"github.com/twquant/screener/internal/data/twse"
	"github.com/twquant/screener/internal/indicators"
	"github.com/twquant/screener/pkg/logger"
	"github.com/twquant/screener/pkg/redis"
)

const (
	calendarDays          = 14
	calendarMinImportance = 2
)

// Overview is one dashboard snapshot. Sections an upstream source could
// not provide stay nil so the rest of the panel still renders.
type Overview struct {
	Date        string                   `json:"date"`
	Market      *twse.MarketSummary      `json:"market,omitempty"`
	Flows       *twse.InstitutionalFlows `json:"flows,omitempty"`
	Taiex       *indicators.Snapshot     `json:"taiex,omitempty"`
	Events      []calendar.Event         `json:"events"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// marketSource is the slice of the TWSE client the dashboard needs.
type marketSource interface {
	MarketSummaries(ctx context.Context) ([]twse.MarketSummary, error)
	InstitutionalFlows(ctx context.Context) (*twse.InstitutionalFlows, error)
}

// eventSource is the slice of the calendar scraper the dashboard needs.
type eventSource interface {
	Upcoming(ctx context.Context, days, minImportance int) []calendar.Event
}

// Service builds dashboard snapshots.
// 任一來源掛掉只缺該區塊，不整頁失敗
type Service struct {
	market marketSource
	events eventSource
	cache  *redis.Cache
	log    *logger.Logger
	now    func() time.Time
}

// NewService creates a dashboard service. A nil cache disables caching.
func NewService(market *twse.Client, events *calendar.Scraper, cache *redis.Cache, log *logger.Logger) *Service {
	return &Service{
		market: market,
		events: events,
		cache:  cache,
		log:    log,
		now:    time.Now,
	}
}

// Overview returns the current snapshot, cached per calendar day with a
// short TTL so intraday numbers stay fresh.
func (s *Service) Overview(ctx context.Context) *Overview {
	today := s.now().Format("2006-01-02")

	if s.cache != nil {
		var cached Overview
		if found, _ := s.cache.Get(ctx, redis.DashboardKey(today), &cached); found {
			return &cached
		}
	}

	o := s.build(ctx, today)

	if s.cache != nil {
		_ = s.cache.Set(ctx, redis.DashboardKey(today), o, redis.TTLShort)
	}
	return o
}

func (s *Service) build(ctx context.Context, today string) *Overview {
	o := &Overview{
		Date:        today,
		Events:      []calendar.Event{},
		GeneratedAt: s.now(),
	}

	summaries, err := s.market.MarketSummaries(ctx)
	switch {
	case err != nil:
		s.log.WithError(err).Warn("market summaries unavailable")
	case len(summaries) == 0:
		s.log.Warn("market summaries empty")
	default:
		latest := summaries[len(summaries)-1]
		o.Market = &latest
		o.Date = latest.Date

		// 加權指數技術指標用當月日線算，資料不足的指標自然缺席
		closes := make([]float64, 0, len(summaries))
		for _, day := range summaries {
			closes = append(closes, day.TaiexIndex)
		}
		o.Taiex = indicators.Compute("TAIEX", closes)
	}

	flows, err := s.market.InstitutionalFlows(ctx)
	if err != nil {
		s.log.WithError(err).Warn("institutional flows unavailable")
	} else {
		o.Flows = flows
	}

	if s.events != nil {
		// 無事件時保留空陣列，序列化不要變 null
		if events := s.events.Upcoming(ctx, calendarDays, calendarMinImportance); events != nil {
			o.Events = events
		}
	}

	return o
}
