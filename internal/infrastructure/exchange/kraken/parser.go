package kraken

import (
	"encoding/json"
	"fmt"
	"time"

	"marketrelay/internal/domain/model"
)

// Decoder turns raw feed frames into normalized records. Location is applied
// to every formatted timestamp; nil keeps the process default (time.Local).
//
// Every Decode method returns model.ErrNotDataMessage for frames that are not
// data of its kind, and an error wrapping model.ErrMalformedField when a
// numeric or time field does not parse.
type Decoder struct {
	Location *time.Location
}

var defaultDecoder = Decoder{}

func DecodeTicker(raw []byte) (string, model.Ticker, error) { return defaultDecoder.DecodeTicker(raw) }
func DecodeSpread(raw []byte) (string, model.Spread, error) { return defaultDecoder.DecodeSpread(raw) }
func DecodeTrade(raw []byte) (string, model.Trade, error)   { return defaultDecoder.DecodeTrade(raw) }

func DecodeCandle(raw []byte, interval int) (string, model.Candle, error) {
	return defaultDecoder.DecodeCandle(raw, interval)
}

func DecodeBookUpdate(raw []byte) (model.BookUpdate, error) {
	return defaultDecoder.DecodeBookUpdate(raw)
}

func (d Decoder) frame(raw []byte, kind model.Kind) (frame, error) {
	f, err := parseFrame(raw)
	if err != nil {
		return frame{}, err
	}
	if !f.is(kind) {
		return frame{}, model.ErrNotDataMessage
	}
	return f, nil
}

// payloadArray is the positional payload of spread, ohlc and trade frames.
func payloadArray(f frame, min int) ([]json.RawMessage, error) {
	var out []json.RawMessage
	if err := json.Unmarshal(f.payloads[0], &out); err != nil || len(out) < min {
		return nil, model.ErrNotDataMessage
	}
	return out, nil
}

func (d Decoder) DecodeTicker(raw []byte) (string, model.Ticker, error) {
	f, err := d.frame(raw, model.KindTicker)
	if err != nil {
		return "", model.Ticker{}, err
	}
	var payload struct {
		Close []json.RawMessage `json:"c"`
	}
	if err := json.Unmarshal(f.payloads[0], &payload); err != nil || len(payload.Close) == 0 {
		return "", model.Ticker{}, model.ErrNotDataMessage
	}
	price, err := parseFloat("ticker close price", payload.Close[0])
	if err != nil {
		return "", model.Ticker{}, err
	}
	t := model.Ticker{Pair: f.pair, LastPrice: price}
	return t.Topic(), t, nil
}

func (d Decoder) DecodeSpread(raw []byte) (string, model.Spread, error) {
	f, err := d.frame(raw, model.KindSpread)
	if err != nil {
		return "", model.Spread{}, err
	}
	p, err := payloadArray(f, 5)
	if err != nil {
		return "", model.Spread{}, err
	}

	s := model.Spread{Pair: f.pair}
	if s.BidPrice, err = parseFloat("spread bid price", p[0]); err != nil {
		return "", model.Spread{}, err
	}
	if s.AskPrice, err = parseFloat("spread ask price", p[1]); err != nil {
		return "", model.Spread{}, err
	}
	if s.Timestamp, err = parseTime("spread time", p[2], d.Location); err != nil {
		return "", model.Spread{}, err
	}
	if s.BidVolume, err = parseFloat("spread bid volume", p[3]); err != nil {
		return "", model.Spread{}, err
	}
	if s.AskVolume, err = parseFloat("spread ask volume", p[4]); err != nil {
		return "", model.Spread{}, err
	}
	return s.Topic(), s, nil
}

// DecodeCandle decodes an ohlc frame. interval must be one of 1, 60 or 1440;
// callers validate it before subscribing.
func (d Decoder) DecodeCandle(raw []byte, interval int) (string, model.Candle, error) {
	freq, ok := model.FrequencyForInterval(interval)
	if !ok {
		return "", model.Candle{}, fmt.Errorf("%w: %d", ErrUnsupportedInterval, interval)
	}
	f, err := d.frame(raw, model.KindOHLC)
	if err != nil {
		return "", model.Candle{}, err
	}
	p, err := payloadArray(f, 9)
	if err != nil {
		return "", model.Candle{}, err
	}

	c := model.Candle{Pair: f.pair, Frequency: freq}
	if c.IntervalStart, err = parseTime("ohlc begin", p[0], d.Location); err != nil {
		return "", model.Candle{}, err
	}
	if c.IntervalEnd, err = parseTime("ohlc end", p[1], d.Location); err != nil {
		return "", model.Candle{}, err
	}
	fields := []struct {
		name string
		dst  *float64
	}{
		{"ohlc open", &c.Open},
		{"ohlc high", &c.High},
		{"ohlc low", &c.Low},
		{"ohlc close", &c.Close},
		{"ohlc vwap", &c.VWAP},
		{"ohlc volume", &c.Volume},
	}
	for i, fld := range fields {
		if *fld.dst, err = parseFloat(fld.name, p[2+i]); err != nil {
			return "", model.Candle{}, err
		}
	}
	if c.TradeCount, err = parseInt("ohlc trade count", p[8]); err != nil {
		return "", model.Candle{}, err
	}
	return c.Topic(), c, nil
}

// DecodeTrade normalizes only the first execution of a batched trade frame.
func (d Decoder) DecodeTrade(raw []byte) (string, model.Trade, error) {
	f, err := d.frame(raw, model.KindTrade)
	if err != nil {
		return "", model.Trade{}, err
	}
	batch, err := payloadArray(f, 1)
	if err != nil {
		return "", model.Trade{}, err
	}
	p, err := array("trade entry", batch[0], 6)
	if err != nil {
		return "", model.Trade{}, err
	}

	t := model.Trade{Pair: f.pair}
	if t.Price, err = parseFloat("trade price", p[0]); err != nil {
		return "", model.Trade{}, err
	}
	if t.Volume, err = parseFloat("trade volume", p[1]); err != nil {
		return "", model.Trade{}, err
	}
	if t.Timestamp, err = parseTime("trade time", p[2], d.Location); err != nil {
		return "", model.Trade{}, err
	}
	side, err := parseString("trade side", p[3])
	if err != nil {
		return "", model.Trade{}, err
	}
	kind, err := parseString("trade order type", p[4])
	if err != nil {
		return "", model.Trade{}, err
	}
	if t.Misc, err = parseString("trade misc", p[5]); err != nil {
		return "", model.Trade{}, err
	}
	t.Side = model.ParseSide(side)
	t.OrderKind = model.ParseOrderKind(kind)
	return t.Topic(), t, nil
}

type bookPayload struct {
	Asks    []json.RawMessage `json:"a"`
	Bids    []json.RawMessage `json:"b"`
	AskSnap []json.RawMessage `json:"as"`
	BidSnap []json.RawMessage `json:"bs"`
}

// DecodeBookUpdate returns the structured snapshot or delta carried by a book
// frame. It does not touch any ladder, and it never fails on a single bad
// level; those reach the store as records it will reject.
func (d Decoder) DecodeBookUpdate(raw []byte) (model.BookUpdate, error) {
	f, err := d.frame(raw, model.KindBook)
	if err != nil {
		return model.BookUpdate{}, err
	}

	u := model.BookUpdate{Pair: f.pair}
	var seen bool
	for _, pl := range f.payloads {
		var bp bookPayload
		if err := json.Unmarshal(pl, &bp); err != nil {
			return model.BookUpdate{}, model.ErrNotDataMessage
		}
		switch {
		case bp.AskSnap != nil || bp.BidSnap != nil:
			u.Snapshot = true
			u.Asks = levelUpdates(bp.AskSnap, u.Asks)
			u.Bids = levelUpdates(bp.BidSnap, u.Bids)
			seen = true
		case bp.Asks != nil || bp.Bids != nil:
			u.Asks = levelUpdates(bp.Asks, u.Asks)
			u.Bids = levelUpdates(bp.Bids, u.Bids)
			seen = true
		}
	}
	if !seen {
		return model.BookUpdate{}, model.ErrNotDataMessage
	}
	return u, nil
}

// levelUpdates appends decoded levels to dst. A nil src leaves dst untouched so
// an absent side stays nil.
//
// Levels are not validated here. A level that is not an array, or whose price
// or volume is missing or not a scalar, keeps its raw text so the store
// rejects that record alone.
func levelUpdates(src []json.RawMessage, dst []model.LevelUpdate) []model.LevelUpdate {
	if src == nil {
		return dst
	}
	if dst == nil {
		dst = make([]model.LevelUpdate, 0, len(src))
	}
	for _, raw := range src {
		dst = append(dst, levelUpdate(raw))
	}
	return dst
}

func levelUpdate(raw json.RawMessage) model.LevelUpdate {
	var fields []json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return model.LevelUpdate{Price: string(raw)}
	}
	var lu model.LevelUpdate
	if len(fields) > 0 {
		lu.Price = scalar(fields[0])
	}
	if len(fields) > 1 {
		lu.Volume = scalar(fields[1])
	}
	if len(fields) > 2 {
		lu.Timestamp, _ = text(fields[2])
	}
	if len(fields) > 3 {
		flag, _ := text(fields[3])
		lu.Republish = flag == "r"
	}
	return lu
}

func scalar(raw json.RawMessage) string {
	if s, ok := text(raw); ok {
		return s
	}
	return string(raw)
}
