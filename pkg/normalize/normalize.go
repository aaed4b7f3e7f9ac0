// Package normalize maps loosely-typed upstream JSON into canonical records.
//
// Each function probes an ordered list of container shapes (category-keyed
// envelopes, a "data" wrapper, a bare array) and uses the first array it
// finds. Fields are read through fallback chains of alternate upstream names
// and coerced to the record's type, defaulting to zero values. No function
// panics or returns an error: unusable input yields an empty slice.
package normalize

// DefaultMoversIndex is the gainers/losers category used when none is given.
const DefaultMoversIndex = "NIFTY"

func mover(rec map[string]any) Mover {
	return Mover{
		Symbol:    str(rec, "symbol", "Symbol"),
		Series:    str(rec, "series"),
		Open:      num(rec, "open_price", "open", "openPrice"),
		High:      num(rec, "high_price", "high", "dayHigh"),
		Low:       num(rec, "low_price", "low", "dayLow"),
		LastPrice: num(rec, "ltp", "lastPrice", "last_price", "ltP"),
		PrevClose: num(rec, "prev_price", "previousClose", "prevClose"),
		Change:    num(rec, "change", "netChange", "chng"),
		PChange:   num(rec, "perChange", "pChange", "net_price", "percentChange", "per"),
		Volume:    num(rec, "trade_quantity", "totalTradedVolume", "volume", "qty"),
		Turnover:  num(rec, "turnover", "totalTradedValue", "trdVal"),
	}
}

func moverPaths(raw any, section, index string) []string {
	if index == "" {
		index = DefaultMoversIndex
	}
	return []string{
		keyed(".data", foldKeys(raw, index)...),
		keyed(".data", foldKeys(raw, section, index)...),
		keyed(".data", foldKeys(raw, section)...),
		"$.data",
		"$",
	}
}

// Gainers normalizes a top-gainers payload for index (e.g. "NIFTY", "allSec").
// Index keys match case-insensitively.
func Gainers(raw any, index string) []Gainer {
	out, _ := GainersFor(raw, index)
	return out
}

// GainersFor is Gainers that also reports whether raw held a gainers list
// for index at all.
func GainersFor(raw any, index string) ([]Gainer, bool) {
	list, found := lookup("gainer", raw, moverPaths(raw, "gainers", index)...)
	recs := records(list)
	out := make([]Gainer, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Gainer(mover(rec)))
	}
	return out, found
}

// Losers normalizes a top-losers payload for index.
func Losers(raw any, index string) []Loser {
	out, _ := LosersFor(raw, index)
	return out
}

// LosersFor is Losers that also reports whether raw held a losers list for
// index at all.
func LosersFor(raw any, index string) ([]Loser, bool) {
	list, found := lookup("loser", raw, moverPaths(raw, "losers", index)...)
	recs := records(list)
	out := make([]Loser, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Loser(mover(rec)))
	}
	return out, found
}

// MostActives normalizes a most-active securities payload.
func MostActives(raw any) []MostActive {
	recs := records(container("most_active", raw, "$.data", "$.mostActive", "$"))
	out := make([]MostActive, 0, len(recs))
	for _, rec := range recs {
		out = append(out, MostActive{
			Symbol:            str(rec, "symbol"),
			LastPrice:         num(rec, "lastPrice", "ltp", "last_price"),
			Change:            num(rec, "change", "netChange"),
			PChange:           num(rec, "pChange", "perChange", "percentChange"),
			TotalTradedVolume: num(rec, "totalTradedVolume", "quantityTraded", "volume"),
			TotalTradedValue:  num(rec, "totalTradedValue", "turnover", "value"),
		})
	}
	return out
}

// Indices normalizes the all-indices board.
func Indices(raw any) []IndexQuote {
	recs := records(container("index_quote", raw, "$.data", "$.indices", "$"))
	out := make([]IndexQuote, 0, len(recs))
	for _, rec := range recs {
		out = append(out, IndexQuote{
			Index:         str(rec, "index", "indexName", "name"),
			Symbol:        str(rec, "indexSymbol", "symbol", "index"),
			Last:          num(rec, "last", "lastPrice", "ltp"),
			Variation:     num(rec, "variation", "change"),
			PercentChange: num(rec, "percentChange", "pChange", "perChange"),
			Open:          num(rec, "open"),
			High:          num(rec, "high"),
			Low:           num(rec, "low"),
			PreviousClose: num(rec, "previousClose", "prevClose"),
			YearHigh:      num(rec, "yearHigh"),
			YearLow:       num(rec, "yearLow"),
			Advances:      count(rec, "advances"),
			Declines:      count(rec, "declines"),
			Unchanged:     count(rec, "unchanged"),
		})
	}
	return out
}

// AdvanceDeclines normalizes market breadth. Besides arrays it accepts the
// single-object shapes {"advance":{"count":{...}}} and {"advances":...}.
func AdvanceDeclines(raw any) []AdvanceDecline {
	build := func(rec map[string]any) AdvanceDecline {
		return AdvanceDecline{
			Advances:  count(rec, "Advances", "advances", "advance"),
			Declines:  count(rec, "Declines", "declines", "decline"),
			Unchanged: count(rec, "Unchange", "Unchanged", "unchanged", "unchange"),
			Total:     count(rec, "Total", "total"),
		}
	}

	if obj := object(raw, "$.advance.count", "$.count"); obj != nil {
		return []AdvanceDecline{build(obj)}
	}
	if obj, ok := raw.(map[string]any); ok {
		if _, has := obj["advances"]; has {
			return []AdvanceDecline{build(obj)}
		}
		if _, has := obj["Advances"]; has {
			return []AdvanceDecline{build(obj)}
		}
	}

	recs := records(container("advance_decline", raw, "$.data", "$"))
	out := make([]AdvanceDecline, 0, len(recs))
	for _, rec := range recs {
		out = append(out, build(rec))
	}
	return out
}

// ChartPoints normalizes an intraday index chart. Samples may be [ts, value]
// pairs or objects.
func ChartPoints(raw any) []ChartPoint {
	list := container("chart_point", raw, "$.grapthData", "$.graphData", "$.data.grapthData", "$.data", "$")
	out := make([]ChartPoint, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case []any:
			if len(v) < 2 {
				continue
			}
			ts, ok1 := toFloat(v[0])
			val, ok2 := toFloat(v[1])
			if !ok1 || !ok2 {
				continue
			}
			out = append(out, ChartPoint{Timestamp: int64(ts), Value: val})
		case map[string]any:
			out = append(out, ChartPoint{
				Timestamp: count(v, "timestamp", "time", "t"),
				Value:     num(v, "value", "close", "v"),
			})
		}
	}
	return out
}

// Quotes normalizes an equity quote. The upstream returns one object, so the
// result holds at most one record.
func Quotes(raw any) []Quote {
	obj := object(raw, "$.data")
	if obj == nil {
		switch v := raw.(type) {
		case map[string]any:
			obj = v
			if list, ok := v["data"].([]any); ok {
				if recs := records(list); len(recs) > 0 {
					obj = recs[0]
				}
			}
		case []any:
			if recs := records(v); len(recs) > 0 {
				obj = recs[0]
			}
		}
	}
	if obj == nil {
		shapeMiss("quote", raw)
		return []Quote{}
	}

	info := nested(obj, "info")
	price := nested(obj, "priceInfo")
	if len(info) == 0 && len(price) == 0 {
		// Flat shape.
		info, price = obj, obj
	}
	intraday := nested(price, "intraDayHighLow")
	week := nested(price, "weekHighLow")

	q := Quote{
		Symbol:        str(info, "symbol"),
		CompanyName:   str(info, "companyName", "company"),
		Industry:      str(info, "industry"),
		LastPrice:     num(price, "lastPrice", "ltp"),
		Change:        num(price, "change", "netChange"),
		PChange:       num(price, "pChange", "perChange"),
		Open:          num(price, "open"),
		High:          num(intraday, "max"),
		Low:           num(intraday, "min"),
		PreviousClose: num(price, "previousClose", "prevClose"),
		Close:         num(price, "close"),
		VWAP:          num(price, "vwap"),
		YearHigh:      num(week, "max"),
		YearLow:       num(week, "min"),
		UpperCircuit:  num(price, "upperCP"),
		LowerCircuit:  num(price, "lowerCP"),
	}
	if q.High == 0 {
		q.High = num(price, "high", "dayHigh")
	}
	if q.Low == 0 {
		q.Low = num(price, "low", "dayLow")
	}
	if q.Symbol == "" && q.LastPrice == 0 {
		shapeMiss("quote", raw)
		return []Quote{}
	}
	return []Quote{q}
}

// CorporateAnnouncements normalizes corporate announcements.
func CorporateAnnouncements(raw any) []CorporateInfo {
	recs := records(container("corporate_info", raw, "$.data", "$"))
	out := make([]CorporateInfo, 0, len(recs))
	for _, rec := range recs {
		out = append(out, CorporateInfo{
			Symbol:        str(rec, "symbol"),
			CompanyName:   str(rec, "sm_name", "companyName", "company"),
			Subject:       str(rec, "desc", "subject"),
			Description:   str(rec, "attchmntText", "details", "description"),
			AttachmentURL: str(rec, "attchmntFile", "attachment"),
			BroadcastAt:   str(rec, "an_dt", "sort_date", "broadcastDate", "dt"),
		})
	}
	return out
}

// CorporateActions normalizes corporate actions.
func CorporateActions(raw any) []CorporateAction {
	recs := records(container("corporate_action", raw, "$.data", "$"))
	out := make([]CorporateAction, 0, len(recs))
	for _, rec := range recs {
		out = append(out, CorporateAction{
			Symbol:      str(rec, "symbol"),
			CompanyName: str(rec, "comp", "companyName", "company"),
			Series:      str(rec, "series"),
			Subject:     str(rec, "subject", "purpose"),
			ExDate:      str(rec, "exDate", "ex_date"),
			RecordDate:  str(rec, "recDate", "recordDate"),
			FaceValue:   num(rec, "faceVal", "faceValue"),
		})
	}
	return out
}

// CorporateEvents normalizes the event calendar.
func CorporateEvents(raw any) []CorporateEvent {
	recs := records(container("corporate_event", raw, "$.data", "$"))
	out := make([]CorporateEvent, 0, len(recs))
	for _, rec := range recs {
		out = append(out, CorporateEvent{
			Symbol:      str(rec, "symbol"),
			CompanyName: str(rec, "company", "companyName", "comp"),
			Purpose:     str(rec, "purpose", "bm_purpose"),
			Description: str(rec, "bm_desc", "description", "desc"),
			Date:        str(rec, "date", "bm_date"),
		})
	}
	return out
}

var dealSections = map[DealKind]string{
	DealBulk:  "BULK_DEALS_DATA",
	DealBlock: "BLOCK_DEALS_DATA",
	DealShort: "SHORT_DEALS_DATA",
}

// ParseDealKind validates a deal kind name.
func ParseDealKind(s string) (DealKind, bool) {
	k := DealKind(s)
	_, ok := dealSections[k]
	return k, ok
}

// Deals normalizes one board of the large-deals snapshot.
func Deals(raw any, kind DealKind) []Deal {
	paths := []string{"$.data", "$"}
	if section, ok := dealSections[kind]; ok {
		paths = append([]string{keyed("", section)}, paths...)
	}

	recs := records(container("deal", raw, paths...))
	out := make([]Deal, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Deal{
			Kind:       kind,
			Date:       str(rec, "date", "BD_DT_DATE"),
			Symbol:     str(rec, "symbol", "BD_SYMBOL"),
			Name:       str(rec, "name", "BD_SCRIP_NAME"),
			ClientName: str(rec, "clientName", "BD_CLIENT_NAME"),
			BuySell:    str(rec, "buySell", "BD_BUY_SELL"),
			Quantity:   num(rec, "qty", "quantity", "BD_QTY_TRD"),
			Price:      num(rec, "watp", "price", "BD_TP_WATP"),
			Remarks:    str(rec, "remarks", "BD_REMARKS"),
		})
	}
	return out
}
