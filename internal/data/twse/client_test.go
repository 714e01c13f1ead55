package twse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twquant/screener/pkg/config"
	"github.com/twquant/screener/pkg/logger"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{LogLevel: "error", LogFormat: "json"}
	cfg.TWSE.BaseURL = server.URL
	return New(cfg, logger.New(cfg))
}

func TestMarketSummaries(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/exchangeReport/FMTQIK", r.URL.Path)
		w.Write([]byte(`[
			{"Date":"1140102","TradeVolume":"5,123,456,789","TradeValue":"301,234,567,890","Transaction":"1,234,567","TAIEX":"23,035.10","Change":"120.55"},
			{"Date":"1140103","TradeVolume":"6,000,000,000","TradeValue":"350,000,000,000","Transaction":"1,500,000","TAIEX":"23,150.42","Change":"115.32"}
		]`))
	})

	summaries, err := c.MarketSummaries(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "2025-01-02", summaries[0].Date)
	assert.InDelta(t, 23035.10, summaries[0].TaiexIndex, 1e-9)
	assert.InDelta(t, 5_123_456_789, summaries[0].TradeVolume, 1e-3)

	latest, err := c.LatestSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2025-01-03", latest.Date)
}

func TestInstitutionalFlowsGrouping(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fund/BFI82U", r.URL.Path)
		w.Write([]byte(`[
			{"Date":"1140103","Name":"自營商(自行買賣)","BuyAmount":"10,000","SellAmount":"4,000","DifAmount":"6,000"},
			{"Date":"1140103","Name":"自營商(避險)","BuyAmount":"20,000","SellAmount":"26,000","DifAmount":"-6,000"},
			{"Date":"1140103","Name":"投信","BuyAmount":"50,000","SellAmount":"30,000","DifAmount":"20,000"},
			{"Date":"1140103","Name":"外資及陸資(不含外資自營商)","BuyAmount":"900,000","SellAmount":"700,000","DifAmount":"200,000"},
			{"Date":"1140103","Name":"外資自營商","BuyAmount":"1,000","SellAmount":"500","DifAmount":"500"}
		]`))
	})

	flows, err := c.InstitutionalFlows(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2025-01-03", flows.Date)
	// 自營商兩列合併
	assert.InDelta(t, 0.0, flows.Dealer.Net, 1e-9)
	assert.InDelta(t, 20_000.0, flows.InvestmentTrust.Net, 1e-9)
	assert.InDelta(t, 200_500.0, flows.Foreign.Net, 1e-9)
	assert.InDelta(t, flows.Foreign.Net/1e8, flows.Foreign.NetBillion, 1e-12)
}

func TestInstitutionalFlowsEmpty(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := c.InstitutionalFlows(context.Background())
	assert.Error(t, err)
}

func TestRocToISO(t *testing.T) {
	assert.Equal(t, "2025-01-02", rocToISO("1140102"))
	assert.Equal(t, "2025-01-02", rocToISO("2025-01-02"))
	assert.Equal(t, "garbage", rocToISO("garbage"))
}
