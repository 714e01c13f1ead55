package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestSMA(t *testing.T) {
	got := SMA(linear(10, 1, 1), 5)
	require.NotNil(t, got)
	assert.Equal(t, 8.0, *got) // mean(6..10)

	assert.Nil(t, SMA(linear(4, 1, 1), 5))
	assert.Nil(t, SMA(nil, 5))
	assert.Nil(t, SMA(linear(10, 1, 1), 0))
}

func TestRSIExtremes(t *testing.T) {
	up := RSI(linear(30, 100, 1), 14)
	require.NotNil(t, up)
	assert.Equal(t, 100.0, *up) // 連漲無跌幅

	down := RSI(linear(30, 100, -1), 14)
	require.NotNil(t, down)
	assert.Equal(t, 0.0, *down)

	assert.Nil(t, RSI(linear(14, 100, 1), 14))
}

func TestMACDInsufficientHistory(t *testing.T) {
	m, s, h := MACD(linear(30, 100, 1))
	assert.Nil(t, m)
	assert.Nil(t, s)
	assert.Nil(t, h)
}

func TestMACDFlatSeries(t *testing.T) {
	m, s, h := MACD(constant(60, 100))
	require.NotNil(t, m)
	assert.Equal(t, 0.0, *m)
	assert.Equal(t, 0.0, *s)
	assert.Equal(t, 0.0, *h)
}

func TestKDRisingSeries(t *testing.T) {
	close := linear(40, 100, 1)
	high := linear(40, 101, 1)
	low := linear(40, 99, 1)

	k, d := KD(high, low, close)
	require.NotNil(t, k)
	require.NotNil(t, d)
	// 等速上漲: (close-minLow)/(maxHigh-minLow) = 9/10
	assert.Equal(t, 90.0, *k)
	assert.Equal(t, 90.0, *d)
}

func TestKDInsufficientHistory(t *testing.T) {
	k, d := KD(linear(10, 101, 1), linear(10, 99, 1), linear(10, 100, 1))
	assert.Nil(t, k)
	assert.Nil(t, d)
}

func TestComputeEmptySeries(t *testing.T) {
	snap := Compute("2330", nil)
	require.NotNil(t, snap)
	assert.Equal(t, "2330", snap.StockID)
	assert.Zero(t, snap.Price)
	assert.Nil(t, snap.MA5)
	assert.Nil(t, snap.RSI)
	assert.Empty(t, snap.Trend)
}

func TestComputeShortSeries(t *testing.T) {
	snap := Compute("2330", []float64{10, 11, 12})
	assert.Equal(t, 12.0, snap.Price)
	assert.Nil(t, snap.MA5)
	assert.Nil(t, snap.MA20)
	assert.Nil(t, snap.RSI)
	assert.Nil(t, snap.MACD)
}

func TestComputeTrend(t *testing.T) {
	// 盤整後急漲: MACD 柱狀圖轉正
	rally := append(constant(80, 100), linear(20, 102, 2)...)
	snap := Compute("2330", rally)
	require.NotNil(t, snap.Histogram)
	assert.Greater(t, *snap.Histogram, 0.0)
	assert.Equal(t, "多頭", snap.Trend)

	// 盤整後急跌
	selloff := append(constant(80, 100), linear(20, 98, -2)...)
	snap = Compute("2330", selloff)
	require.NotNil(t, snap.Histogram)
	assert.Less(t, *snap.Histogram, 0.0)
	assert.Equal(t, "空頭", snap.Trend)
}

func TestComputeOHLC(t *testing.T) {
	close := linear(70, 100, 1)
	snap := ComputeOHLC("1101", linear(70, 101, 1), linear(70, 99, 1), close)

	assert.Equal(t, 169.0, snap.Price)
	require.NotNil(t, snap.MA60)
	require.NotNil(t, snap.K)
	require.NotNil(t, snap.D)
	assert.Equal(t, 90.0, *snap.K)
}
