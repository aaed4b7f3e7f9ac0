package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestNormalizers_DegenerateInput(t *testing.T) {
	inputs := map[string]any{
		"empty object": map[string]any{},
		"null":         nil,
		"bare number":  42.0,
		"bare string":  "Resource not found",
		"error object": map[string]any{"error": "Resource not found"},
	}

	normalizers := map[string]func(any) int{
		"gainers":         func(raw any) int { return len(Gainers(raw, "NIFTY")) },
		"losers":          func(raw any) int { return len(Losers(raw, "")) },
		"mostActive":      func(raw any) int { return len(MostActives(raw)) },
		"indices":         func(raw any) int { return len(Indices(raw)) },
		"advanceDecline":  func(raw any) int { return len(AdvanceDeclines(raw)) },
		"chart":           func(raw any) int { return len(ChartPoints(raw)) },
		"quote":           func(raw any) int { return len(Quotes(raw)) },
		"announcements":   func(raw any) int { return len(CorporateAnnouncements(raw)) },
		"corporateAction": func(raw any) int { return len(CorporateActions(raw)) },
		"corporateEvent":  func(raw any) int { return len(CorporateEvents(raw)) },
		"bulkDeals":       func(raw any) int { return len(Deals(raw, DealBulk)) },
	}

	for name, normalize := range normalizers {
		for inputName, raw := range inputs {
			t.Run(name+"/"+inputName, func(t *testing.T) {
				var n int
				assert.NotPanics(t, func() { n = normalize(raw) })
				assert.Equal(t, 0, n)
			})
		}
	}
}

func TestNormalizers_ReturnNonNilSlices(t *testing.T) {
	assert.NotNil(t, Gainers(nil, ""))
	assert.NotNil(t, Quotes(nil))
	assert.NotNil(t, Deals(nil, DealBlock))
}

func TestGainers_FallbackFields(t *testing.T) {
	a := Gainers([]any{map[string]any{"symbol": "SBIN", "perChange": 1.5}}, "")
	b := Gainers([]any{map[string]any{"symbol": "SBIN", "pChange": 1.5}}, "")

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0], b[0])
	assert.Equal(t, Gainer{Symbol: "SBIN", PChange: 1.5}, a[0])
}

func TestGainers_ContainerShapes(t *testing.T) {
	record := `{"symbol":"SBIN","ltp":810.4,"net_price":2.58}`

	tests := []struct {
		name  string
		raw   string
		index string
	}{
		{name: "keyed by index", raw: `{"NIFTY":{"data":[` + record + `]}}`, index: "NIFTY"},
		{name: "keyed by index with space", raw: `{"NIFTY 50":{"data":[` + record + `]}}`, index: "NIFTY 50"},
		{name: "keyed by section and index", raw: `{"gainers":{"BANKNIFTY":{"data":[` + record + `]}}}`, index: "BANKNIFTY"},
		{name: "data wrapper", raw: `{"data":[` + record + `]}`, index: "NIFTY"},
		{name: "bare array", raw: `[` + record + `]`, index: "NIFTY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Gainers(decode(t, tt.raw), tt.index)
			require.Len(t, got, 1)
			assert.Equal(t, "SBIN", got[0].Symbol)
			assert.Equal(t, 810.4, got[0].LastPrice)
			assert.Equal(t, 2.58, got[0].PChange)
		})
	}
}

func TestGainers_IndexKeyIgnoresCase(t *testing.T) {
	raw := decode(t, `{"allSec":{"data":[{"symbol":"SBIN"}]},"gainers":{"SecGtr20":{"data":[{"symbol":"TCS"}]}}}`)

	for _, index := range []string{"allSec", "ALLSEC", "allsec"} {
		got, found := GainersFor(raw, index)
		assert.True(t, found, index)
		require.Len(t, got, 1, index)
		assert.Equal(t, "SBIN", got[0].Symbol)
	}

	got, found := GainersFor(raw, "secgtr20")
	assert.True(t, found)
	require.Len(t, got, 1)
	assert.Equal(t, "TCS", got[0].Symbol)
}

func TestMoversFor_ReportsMissingIndex(t *testing.T) {
	raw := decode(t, `{"NIFTY":{"data":[{"symbol":"SBIN"}]},"BANKNIFTY":{"data":[]},"legends":[["NIFTY","NIFTY 50"]]}`)

	got, found := GainersFor(raw, "NOSUCHINDEX")
	assert.False(t, found)
	assert.Empty(t, got)
	assert.NotNil(t, got)

	losers, found := LosersFor(raw, "BANKNIFTY")
	assert.True(t, found, "an empty list is still a match")
	assert.Empty(t, losers)
}

func TestGainers_SkipsNonObjectElements(t *testing.T) {
	got := Gainers(decode(t, `{"data":[null, 3, "x", {"symbol":"TCS"}]}`), "")
	require.Len(t, got, 1)
	assert.Equal(t, "TCS", got[0].Symbol)
	assert.Zero(t, got[0].LastPrice)
}

func TestLosers(t *testing.T) {
	got := Losers(decode(t, `{"NIFTY":{"data":[{"symbol":"INFY","ltp":"1,402.35","perChange":"-2.10"}]}}`), "NIFTY")
	require.Len(t, got, 1)
	assert.Equal(t, Loser{Symbol: "INFY", LastPrice: 1402.35, PChange: -2.10}, got[0])
}

func TestMostActives_StringNumbers(t *testing.T) {
	got := MostActives(decode(t, `{"data":[{"symbol":"RELIANCE","lastPrice":"2,945.10","pChange":"-","perChange":"-0.45","totalTradedVolume":"12,345,678"}]}`))
	require.Len(t, got, 1)
	assert.Equal(t, 2945.10, got[0].LastPrice)
	assert.Equal(t, -0.45, got[0].PChange, "dash falls through to the next alternative")
	assert.Equal(t, 12345678.0, got[0].TotalTradedVolume)
	assert.Zero(t, got[0].TotalTradedValue)
}

func TestIndices(t *testing.T) {
	got := Indices(decode(t, `{"data":[{"index":"NIFTY 50","indexSymbol":"NIFTY 50","last":22500.5,"percentChange":0.54,"advances":"35","declines":"14","unchanged":"1"}]}`))
	require.Len(t, got, 1)
	assert.Equal(t, "NIFTY 50", got[0].Index)
	assert.Equal(t, 22500.5, got[0].Last)
	assert.Equal(t, int64(35), got[0].Advances)
	assert.Equal(t, int64(14), got[0].Declines)
	assert.Equal(t, int64(1), got[0].Unchanged)
}

func TestAdvanceDeclines_Shapes(t *testing.T) {
	want := AdvanceDecline{Advances: 1200, Declines: 800, Unchanged: 50, Total: 2050}

	tests := []struct {
		name string
		raw  string
	}{
		{name: "advance count envelope", raw: `{"advance":{"count":{"Advances":1200,"Declines":800,"Unchange":50,"Total":2050}}}`},
		{name: "flat object", raw: `{"advances":"1,200","declines":800,"unchanged":50,"total":2050}`},
		{name: "data array", raw: `{"data":[{"advances":1200,"declines":800,"unchanged":50,"total":2050}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AdvanceDeclines(decode(t, tt.raw))
			require.Len(t, got, 1)
			assert.Equal(t, want, got[0])
		})
	}
}

func TestChartPoints(t *testing.T) {
	got := ChartPoints(decode(t, `{"name":"NIFTY 50","grapthData":[[1709350200000,22300.5],[1709350260000,"22,310.25"],[1],"bad",{"time":1709350320000,"value":22305}]}`))
	require.Len(t, got, 3)
	assert.Equal(t, ChartPoint{Timestamp: 1709350200000, Value: 22300.5}, got[0])
	assert.Equal(t, ChartPoint{Timestamp: 1709350260000, Value: 22310.25}, got[1])
	assert.Equal(t, ChartPoint{Timestamp: 1709350320000, Value: 22305}, got[2])
}

func TestQuotes(t *testing.T) {
	t.Run("nested quote-equity shape", func(t *testing.T) {
		got := Quotes(decode(t, `{
			"info":{"symbol":"SBIN","companyName":"State Bank of India","industry":"Banks"},
			"priceInfo":{"lastPrice":810.4,"change":20.4,"pChange":2.58,"open":800,"close":0,"previousClose":790,
				"vwap":805.1,"upperCP":"869.00","lowerCP":"711.00",
				"intraDayHighLow":{"min":798,"max":812.5},"weekHighLow":{"min":543.2,"max":912.1}}}`))
		require.Len(t, got, 1)
		q := got[0]
		assert.Equal(t, "SBIN", q.Symbol)
		assert.Equal(t, "State Bank of India", q.CompanyName)
		assert.Equal(t, 812.5, q.High)
		assert.Equal(t, 798.0, q.Low)
		assert.Equal(t, 912.1, q.YearHigh)
		assert.Equal(t, 869.0, q.UpperCircuit)
	})

	t.Run("flat shape", func(t *testing.T) {
		got := Quotes(decode(t, `{"symbol":"TCS","lastPrice":3945,"dayHigh":3950}`))
		require.Len(t, got, 1)
		assert.Equal(t, "TCS", got[0].Symbol)
		assert.Equal(t, 3950.0, got[0].High)
	})

	t.Run("data array", func(t *testing.T) {
		got := Quotes(decode(t, `{"data":[{"symbol":"INFY","lastPrice":1402.35}]}`))
		require.Len(t, got, 1)
		assert.Equal(t, "INFY", got[0].Symbol)
	})
}

func TestCorporate(t *testing.T) {
	ann := CorporateAnnouncements(decode(t, `[{"symbol":"SBIN","sm_name":"State Bank of India","desc":"Outcome of Board Meeting","attchmntFile":"https://example.invalid/a.pdf","an_dt":"02-Mar-2026 18:01:22"}]`))
	require.Len(t, ann, 1)
	assert.Equal(t, CorporateInfo{
		Symbol:        "SBIN",
		CompanyName:   "State Bank of India",
		Subject:       "Outcome of Board Meeting",
		AttachmentURL: "https://example.invalid/a.pdf",
		BroadcastAt:   "02-Mar-2026 18:01:22",
	}, ann[0])

	act := CorporateActions(decode(t, `{"data":[{"symbol":"ITC","comp":"ITC Limited","series":"EQ","subject":"Dividend - Rs 6.25 Per Share","exDate":"04-Mar-2026","recDate":"04-Mar-2026","faceVal":"1"}]}`))
	require.Len(t, act, 1)
	assert.Equal(t, "ITC Limited", act[0].CompanyName)
	assert.Equal(t, 1.0, act[0].FaceValue)

	ev := CorporateEvents(decode(t, `[{"symbol":"HDFCBANK","company":"HDFC Bank Limited","purpose":"Financial Results","bm_desc":"To consider results","date":"18-Apr-2026"}]`))
	require.Len(t, ev, 1)
	assert.Equal(t, "Financial Results", ev[0].Purpose)
	assert.Equal(t, "To consider results", ev[0].Description)
}

func TestDeals(t *testing.T) {
	raw := decode(t, `{
		"BULK_DEALS_DATA":[{"date":"02-Mar-2026","symbol":"ABC","name":"ABC Ltd","clientName":"XYZ FUND","buySell":"BUY","qty":"5,00,000","watp":"12.35"}],
		"BLOCK_DEALS_DATA":[],
		"SHORT_DEALS_DATA":[{"date":"02-Mar-2026","symbol":"DEF","qty":100}]}`)

	bulk := Deals(raw, DealBulk)
	require.Len(t, bulk, 1)
	assert.Equal(t, Deal{
		Kind:       DealBulk,
		Date:       "02-Mar-2026",
		Symbol:     "ABC",
		Name:       "ABC Ltd",
		ClientName: "XYZ FUND",
		BuySell:    "BUY",
		Quantity:   500000,
		Price:      12.35,
	}, bulk[0])

	assert.Empty(t, Deals(raw, DealBlock))

	short := Deals(raw, DealShort)
	require.Len(t, short, 1)
	assert.Equal(t, "DEF", short[0].Symbol)
}

func TestParseDealKind(t *testing.T) {
	for _, s := range []string{"bulk", "block", "short"} {
		k, ok := ParseDealKind(s)
		assert.True(t, ok, s)
		assert.Equal(t, DealKind(s), k)
	}
	_, ok := ParseDealKind("odd-lot")
	assert.False(t, ok)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{in: "1,234.50", want: 1234.5, wantOK: true},
		{in: " 12 ", want: 12, wantOK: true},
		{in: "-3.5", want: -3.5, wantOK: true},
		{in: "-", wantOK: false},
		{in: "", wantOK: false},
		{in: "n/a", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseNumber(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
