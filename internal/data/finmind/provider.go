package finmind

import (
	"context"
	"sync"
	"time"

	"github.com/twquant/screener/internal/data"
	"github.com/twquant/screener/internal/table"
	"github.com/twquant/screener/pkg/logger"
	"github.com/twquant/screener/pkg/redis"
)

// Lookback windows per dataset family. Sized so every strategy window
// (60-day base, 12-month revenue high, 4 quarters of statements) has
// headroom.
const (
	priceLookbackDays     = 270
	revenueLookbackDays   = 900 // ~30 個月
	statementLookbackDays = 1100
	marginLookbackDays    = 90
	dividendLookbackDays  = 1500 // 三個完整股利年度再加公告時差
)

// Statement line-item types mapped to data keys.
const (
	typeEPS         = "EPS"
	typeNetIncome   = "IncomeAfterTaxes"
	typeCash        = "CashAndCashEquivalents"
	typeCommonStock = "OrdinaryShare"
	typeTotalAssets = "TotalAssets"
	typeEquity      = "Equity"
	typeOperatingCF = "CashFlowsFromOperatingActivities"
	typeInvestingCF = "CashProvidedByInvestingActivities"
	typeFinancingCF = "CashFlowsProvidedFromFinancingActivities"
)

// Provider builds aligned tables from FinMind datasets and implements
// data.Provider. Built tables are memoized for the process lifetime and
// cached in Redis with a daily TTL.
type Provider struct {
	client *Client
	cache  *redis.Cache
	log    *logger.Logger
	now    func() time.Time

	mu       sync.Mutex
	tables   map[string]*table.Frame
	industry map[string]string
}

// NewProvider creates a provider over the given client. A nil cache
// disables Redis caching.
func NewProvider(client *Client, cache *redis.Cache, log *logger.Logger) *Provider {
	return &Provider{
		client: client,
		cache:  cache,
		log:    log,
		now:    time.Now,
		tables: make(map[string]*table.Frame),
	}
}

// Table returns the aligned table for key. Keys FinMind has no source
// for yield an empty frame, never an error.
// ⭐ SSOT: 資料鍵 → FinMind 資料集的對應只在這裡
func (p *Provider) Table(ctx context.Context, key string) (*table.Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tableLocked(ctx, key)
}

func (p *Provider) tableLocked(ctx context.Context, key string) (*table.Frame, error) {
	if f, ok := p.tables[key]; ok {
		return f, nil
	}

	if f := p.fromCache(ctx, key); f != nil {
		p.tables[key] = f
		return f, nil
	}

	var err error
	switch key {
	case data.KeyClose, data.KeyOpen, data.KeyHigh, data.KeyLow, data.KeyVolume:
		err = p.buildPrices(ctx)
	case data.KeyRevenue, data.KeyRevenueYoY, data.KeyRevenueMoM:
		err = p.buildRevenues(ctx)
	case data.KeyCash, data.KeyCommonStock, data.KeyEPS, data.KeyROE,
		data.KeyOperatingCF, data.KeyInvestingCF, data.KeyFinancingCF,
		data.KeyTotalAssets:
		err = p.buildStatements(ctx)
	case data.KeyMarginBalance:
		err = p.buildMargins(ctx)
	case data.KeyCashDividend:
		err = p.buildDividends(ctx)
	case data.KeyMarketCap:
		err = p.buildMarketCap(ctx)
	default:
		// 注意股 / 全額交割股等旗標沒有 FinMind 來源，回傳空表讓篩選略過
		p.log.WithField("key", key).Debug("no FinMind source for data key, returning empty table")
		p.tables[key] = table.NewFrame(nil, nil)
	}
	if err != nil {
		return nil, err
	}

	f, ok := p.tables[key]
	if !ok {
		f = table.NewFrame(nil, nil)
		p.tables[key] = f
	}
	return f, nil
}

// Bundle fetches all requested keys. Per-key fetch failures degrade to
// empty tables with a warning so one dataset outage cannot sink a batch.
func (p *Provider) Bundle(ctx context.Context, keys []string) (*data.Bundle, error) {
	b := data.NewBundle()
	for _, key := range keys {
		f, err := p.Table(ctx, key)
		if err != nil {
			p.log.WithError(err).WithField("key", key).Warn("table build failed, continuing with empty table")
			f = table.NewFrame(nil, nil)
		}
		b.Set(key, f)
	}

	industry, err := p.Industry(ctx)
	if err != nil {
		p.log.WithError(err).Warn("industry classification unavailable")
	} else {
		b.Industry = industry
	}
	return b, nil
}

// Industry returns the stock→industry classification from TaiwanStockInfo.
func (p *Provider) Industry(ctx context.Context) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.industry != nil {
		return p.industry, nil
	}

	if p.cache != nil {
		var cached map[string]string
		if found, _ := p.cache.Get(ctx, redis.StockInfoKey("industry"), &cached); found {
			p.industry = cached
			return cached, nil
		}
	}

	rows, err := p.client.StockInfo(ctx)
	if err != nil {
		return nil, err
	}
	industry := make(map[string]string, len(rows))
	for _, row := range rows {
		if row.IndustryCategory != "" {
			industry[row.StockID] = row.IndustryCategory
		}
	}
	p.industry = industry

	if p.cache != nil {
		_ = p.cache.Set(ctx, redis.StockInfoKey("industry"), industry, redis.TTLMedium)
	}
	return industry, nil
}

func (p *Provider) fromCache(ctx context.Context, key string) *table.Frame {
	if p.cache == nil {
		return nil
	}
	f := &table.Frame{}
	found, err := p.cache.Get(ctx, redis.TableKey(key), f)
	if err != nil || !found {
		return nil
	}
	return f
}

func (p *Provider) store(ctx context.Context, key string, f *table.Frame) {
	p.tables[key] = f
	if p.cache != nil {
		_ = p.cache.Set(ctx, redis.TableKey(key), f, redis.TTLDaily)
	}
}

func (p *Provider) startDate(lookbackDays int) string {
	return p.now().AddDate(0, 0, -lookbackDays).Format("2006-01-02")
}

func (p *Provider) buildPrices(ctx context.Context) error {
	rows, err := p.client.Prices(ctx, p.startDate(priceLookbackDays))
	if err != nil {
		return err
	}

	closeCells := make([]table.Cell, 0, len(rows))
	openCells := make([]table.Cell, 0, len(rows))
	highCells := make([]table.Cell, 0, len(rows))
	lowCells := make([]table.Cell, 0, len(rows))
	volumeCells := make([]table.Cell, 0, len(rows))
	for _, r := range rows {
		closeCells = append(closeCells, table.Cell{Date: r.Date, Stock: r.StockID, Value: r.Close})
		openCells = append(openCells, table.Cell{Date: r.Date, Stock: r.StockID, Value: r.Open})
		highCells = append(highCells, table.Cell{Date: r.Date, Stock: r.StockID, Value: r.Max})
		lowCells = append(lowCells, table.Cell{Date: r.Date, Stock: r.StockID, Value: r.Min})
		volumeCells = append(volumeCells, table.Cell{Date: r.Date, Stock: r.StockID, Value: r.TradingVolume})
	}

	p.store(ctx, data.KeyClose, table.FromCells(closeCells))
	p.store(ctx, data.KeyOpen, table.FromCells(openCells))
	p.store(ctx, data.KeyHigh, table.FromCells(highCells))
	p.store(ctx, data.KeyLow, table.FromCells(lowCells))
	p.store(ctx, data.KeyVolume, table.FromCells(volumeCells))

	p.log.WithFields(map[string]interface{}{
		"rows":   len(rows),
		"stocks": p.tables[data.KeyClose].NumStocks(),
		"dates":  p.tables[data.KeyClose].NumDates(),
	}).Info("price tables built")
	return nil
}

func (p *Provider) buildRevenues(ctx context.Context) error {
	rows, err := p.client.MonthRevenues(ctx, p.startDate(revenueLookbackDays))
	if err != nil {
		return err
	}

	cells := make([]table.Cell, 0, len(rows))
	for _, r := range rows {
		// 單位統一為仟元
		cells = append(cells, table.Cell{Date: r.Date, Stock: r.StockID, Value: r.Revenue / 1000})
	}
	revenue := table.FromCells(cells)

	p.store(ctx, data.KeyRevenue, revenue)
	p.store(ctx, data.KeyRevenueYoY, revenue.PctChange(12))
	p.store(ctx, data.KeyRevenueMoM, revenue.PctChange(1))

	p.log.WithFields(map[string]interface{}{
		"rows":   len(rows),
		"months": revenue.NumDates(),
	}).Info("revenue tables built")
	return nil
}

func (p *Provider) buildStatements(ctx context.Context) error {
	start := p.startDate(statementLookbackDays)

	keyByType := map[string]string{
		typeCash:        data.KeyCash,
		typeCommonStock: data.KeyCommonStock,
		typeTotalAssets: data.KeyTotalAssets,
		typeOperatingCF: data.KeyOperatingCF,
		typeInvestingCF: data.KeyInvestingCF,
		typeFinancingCF: data.KeyFinancingCF,
	}
	cellsByKey := make(map[string][]table.Cell)
	var incomeCells, equityCells []table.Cell

	for _, dataset := range []string{DatasetFinancialStatements, DatasetBalanceSheet, DatasetCashFlows} {
		rows, err := p.client.Statements(ctx, dataset, start)
		if err != nil {
			return err
		}
		for _, r := range rows {
			value := r.Value / 1000 // 仟元
			switch r.Type {
			case typeNetIncome:
				incomeCells = append(incomeCells, table.Cell{Date: r.Date, Stock: r.StockID, Value: value})
			case typeEquity:
				equityCells = append(equityCells, table.Cell{Date: r.Date, Stock: r.StockID, Value: value})
			case typeEPS:
				// EPS 以元計，不換算
				cellsByKey[data.KeyEPS] = append(cellsByKey[data.KeyEPS], table.Cell{Date: r.Date, Stock: r.StockID, Value: r.Value})
			default:
				if key, ok := keyByType[r.Type]; ok {
					cellsByKey[key] = append(cellsByKey[key], table.Cell{Date: r.Date, Stock: r.StockID, Value: value})
				}
			}
		}
	}

	for _, key := range []string{
		data.KeyEPS, data.KeyCash, data.KeyCommonStock, data.KeyTotalAssets,
		data.KeyOperatingCF, data.KeyInvestingCF, data.KeyFinancingCF,
	} {
		p.store(ctx, key, table.FromCells(cellsByKey[key]))
	}

	// ROE 以百分比表示，與原始資料源一致
	income := table.FromCells(incomeCells)
	equity := table.FromCells(equityCells)
	roe := income.Div(equity).Apply(func(v float64) float64 { return v * 100 })
	p.store(ctx, data.KeyROE, roe)

	p.log.WithFields(map[string]interface{}{
		"quarters": income.NumDates(),
		"stocks":   income.NumStocks(),
	}).Info("statement tables built")
	return nil
}

func (p *Provider) buildMargins(ctx context.Context) error {
	rows, err := p.client.MarginBalances(ctx, p.startDate(marginLookbackDays))
	if err != nil {
		return err
	}

	cells := make([]table.Cell, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, table.Cell{Date: r.Date, Stock: r.StockID, Value: r.MarginPurchaseTodayBalance})
	}
	p.store(ctx, data.KeyMarginBalance, table.FromCells(cells))
	return nil
}

// buildDividends maps dividend announcements to cash payout per share
// (元/股). Earnings and statutory-surplus payouts announced on the same
// date are summed; each announcement date is one row.
func (p *Provider) buildDividends(ctx context.Context) error {
	rows, err := p.client.Dividends(ctx, p.startDate(dividendLookbackDays))
	if err != nil {
		return err
	}

	type cellKey struct{ date, stock string }
	perShare := make(map[cellKey]float64, len(rows))
	for _, r := range rows {
		perShare[cellKey{r.Date, r.StockID}] += r.CashEarningsDistribution + r.CashStatutorySurplus
	}

	cells := make([]table.Cell, 0, len(perShare))
	for k, v := range perShare {
		cells = append(cells, table.Cell{Date: k.date, Stock: k.stock, Value: v})
	}
	p.store(ctx, data.KeyCashDividend, table.FromCells(cells))

	p.log.WithFields(map[string]interface{}{
		"rows":  len(rows),
		"dates": p.tables[data.KeyCashDividend].NumDates(),
	}).Info("dividend table built")
	return nil
}

// buildMarketCap derives market cap from close price and the latest
// capital stock (面額 10 元: 股數 = 股本仟元 × 100).
func (p *Provider) buildMarketCap(ctx context.Context) error {
	close, err := p.tableLocked(ctx, data.KeyClose)
	if err != nil {
		return err
	}
	commonStock, err := p.tableLocked(ctx, data.KeyCommonStock)
	if err != nil {
		return err
	}
	if close.IsEmpty() || commonStock.IsEmpty() {
		p.tables[data.KeyMarketCap] = table.NewFrame(nil, nil)
		return nil
	}

	capital := commonStock.LatestRow()
	marketCap := table.NewFrame(close.Dates(), close.Stocks())
	for i, date := range close.Dates() {
		for _, stock := range close.Stocks() {
			capitalStock, ok := capital.Value(stock)
			if !ok {
				continue
			}
			marketCap.Set(date, stock, close.At(i, stock)*capitalStock*100)
		}
	}
	p.store(ctx, data.KeyMarketCap, marketCap)
	return nil
}

var _ data.Provider = (*Provider)(nil)
