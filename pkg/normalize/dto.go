package normalize

// Mover is a price mover as listed on the gainers/losers boards.
type Mover struct {
	Symbol    string  `json:"symbol"`
	Series    string  `json:"series"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	LastPrice float64 `json:"lastPrice"`
	PrevClose float64 `json:"prevClose"`
	Change    float64 `json:"change"`
	PChange   float64 `json:"pChange"`
	Volume    float64 `json:"volume"`
	Turnover  float64 `json:"turnover"`
}

// Gainer is a top gainer.
type Gainer Mover

// Loser is a top loser.
type Loser Mover

// MostActive is a security ranked by traded volume or value.
type MostActive struct {
	Symbol            string  `json:"symbol"`
	LastPrice         float64 `json:"lastPrice"`
	Change            float64 `json:"change"`
	PChange           float64 `json:"pChange"`
	TotalTradedVolume float64 `json:"totalTradedVolume"`
	TotalTradedValue  float64 `json:"totalTradedValue"`
}

// IndexQuote is one row of the all-indices board.
type IndexQuote struct {
	Index         string  `json:"index"`
	Symbol        string  `json:"symbol"`
	Last          float64 `json:"last"`
	Variation     float64 `json:"variation"`
	PercentChange float64 `json:"percentChange"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	PreviousClose float64 `json:"previousClose"`
	YearHigh      float64 `json:"yearHigh"`
	YearLow       float64 `json:"yearLow"`
	Advances      int64   `json:"advances"`
	Declines      int64   `json:"declines"`
	Unchanged     int64   `json:"unchanged"`
}

// AdvanceDecline is market breadth.
type AdvanceDecline struct {
	Advances  int64 `json:"advances"`
	Declines  int64 `json:"declines"`
	Unchanged int64 `json:"unchanged"`
	Total     int64 `json:"total"`
}

// ChartPoint is one intraday index sample. Timestamp is unix milliseconds.
type ChartPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// Quote is an equity quote.
type Quote struct {
	Symbol        string  `json:"symbol"`
	CompanyName   string  `json:"companyName"`
	Industry      string  `json:"industry"`
	LastPrice     float64 `json:"lastPrice"`
	Change        float64 `json:"change"`
	PChange       float64 `json:"pChange"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	PreviousClose float64 `json:"previousClose"`
	Close         float64 `json:"close"`
	VWAP          float64 `json:"vwap"`
	YearHigh      float64 `json:"yearHigh"`
	YearLow       float64 `json:"yearLow"`
	UpperCircuit  float64 `json:"upperCircuit"`
	LowerCircuit  float64 `json:"lowerCircuit"`
}

// CorporateInfo is a corporate announcement.
type CorporateInfo struct {
	Symbol        string `json:"symbol"`
	CompanyName   string `json:"companyName"`
	Subject       string `json:"subject"`
	Description   string `json:"description"`
	AttachmentURL string `json:"attachmentUrl"`
	BroadcastAt   string `json:"broadcastAt"`
}

// CorporateAction is a dividend, split, bonus or similar action.
type CorporateAction struct {
	Symbol      string  `json:"symbol"`
	CompanyName string  `json:"companyName"`
	Series      string  `json:"series"`
	Subject     string  `json:"subject"`
	ExDate      string  `json:"exDate"`
	RecordDate  string  `json:"recordDate"`
	FaceValue   float64 `json:"faceValue"`
}

// CorporateEvent is a scheduled board meeting or similar event.
type CorporateEvent struct {
	Symbol      string `json:"symbol"`
	CompanyName string `json:"companyName"`
	Purpose     string `json:"purpose"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

// DealKind selects the large-deal board.
type DealKind string

const (
	DealBulk  DealKind = "bulk"
	DealBlock DealKind = "block"
	DealShort DealKind = "short"
)

// Deal is a bulk, block or short-selling deal.
type Deal struct {
	Kind       DealKind `json:"kind"`
	Date       string   `json:"date"`
	Symbol     string   `json:"symbol"`
	Name       string   `json:"name"`
	ClientName string   `json:"clientName"`
	BuySell    string   `json:"buySell"`
	Quantity   float64  `json:"quantity"`
	Price      float64  `json:"price"`
	Remarks    string   `json:"remarks"`
}
