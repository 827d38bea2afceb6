package model

import "errors"

// ErrNotDataMessage marks control, heartbeat and subscription-status frames.
// Callers drop these silently.
var ErrNotDataMessage = errors.New("not a data message")

// ErrMalformedField is returned when a numeric or timestamp field of a data
// message does not parse. It is scoped to that one message.
var ErrMalformedField = errors.New("malformed field")

// TimeLayout is the canonical second-precision timestamp used in records.
const TimeLayout = "2006-01-02 15:04:05"

// Kind is the feed channel a record came from.
type Kind string

const (
	KindTicker Kind = "ticker"
	KindSpread Kind = "spread"
	KindOHLC   Kind = "ohlc"
	KindTrade  Kind = "trade"
	KindBook   Kind = "book"
)

// Kinds lists every subscribable channel in a stable order.
var Kinds = []Kind{KindTicker, KindSpread, KindOHLC, KindTrade, KindBook}

// Record is a normalized, publishable feed record.
type Record interface {
	Kind() Kind
	Topic() string
}

type Ticker struct {
	Pair      string
	LastPrice float64
}

func (Ticker) Kind() Kind            { return KindTicker }
func (t Ticker) Topic() string       { return TickerTopic(t.Pair) }
func TickerTopic(pair string) string { return "Ticker - " + pair }

type Spread struct {
	Pair      string
	BidPrice  float64
	AskPrice  float64
	BidVolume float64
	AskVolume float64
	Timestamp string
}

func (Spread) Kind() Kind            { return KindSpread }
func (s Spread) Topic() string       { return SpreadTopic(s.Pair) }
func SpreadTopic(pair string) string { return "Spread - " + pair }

type Candle struct {
	Pair          string
	Frequency     Frequency
	IntervalStart string
	IntervalEnd   string
	Open          float64
	High          float64
	Low           float64
	Close         float64
	VWAP          float64
	Volume        float64
	TradeCount    int64
}

func (Candle) Kind() Kind      { return KindOHLC }
func (c Candle) Topic() string { return CandleTopic(c.Pair, c.Frequency) }

func CandleTopic(pair string, f Frequency) string {
	return "OHLC - " + pair + " - " + f.String()
}

type Trade struct {
	Pair      string
	Price     float64
	Volume    float64
	Timestamp string
	Side      Side
	OrderKind OrderKind
	Misc      string
}

func (Trade) Kind() Kind            { return KindTrade }
func (t Trade) Topic() string       { return TradeTopic(t.Pair) }
func TradeTopic(pair string) string { return "Trade - " + pair }
