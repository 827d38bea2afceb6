// Package codec implements the bus wire schema for normalized records. The
// payloads are protocol buffer messages laid out as in
// api/proto/marketrelay.proto; they are written and read with protowire so
// subscribers in any language can decode them with generated code.
package codec

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"

	"marketrelay/internal/domain/model"
)

// ErrUnknownRecord is returned for records or topics outside the schema.
var ErrUnknownRecord = errors.New("unknown record kind")

// Proto is the record encoder used by the relay.
type Proto struct{}

// Field numbers. They are part of the published schema and never change.
const (
	tickerPair  protowire.Number = 1
	tickerPrice protowire.Number = 2

	spreadPair      protowire.Number = 1
	spreadBid       protowire.Number = 2
	spreadAsk       protowire.Number = 3
	spreadTime      protowire.Number = 4
	spreadBidVolume protowire.Number = 5
	spreadAskVolume protowire.Number = 6

	ohlcPair      protowire.Number = 1
	ohlcBegin     protowire.Number = 2
	ohlcEnd       protowire.Number = 3
	ohlcOpen      protowire.Number = 4
	ohlcHigh      protowire.Number = 5
	ohlcLow       protowire.Number = 6
	ohlcClose     protowire.Number = 7
	ohlcVWAP      protowire.Number = 8
	ohlcVolume    protowire.Number = 9
	ohlcTrades    protowire.Number = 10
	ohlcFrequency protowire.Number = 11

	tradePair      protowire.Number = 1
	tradePrice     protowire.Number = 2
	tradeVolume    protowire.Number = 3
	tradeTime      protowire.Number = 4
	tradeSide      protowire.Number = 5
	tradeOrderType protowire.Number = 6
	tradeMisc      protowire.Number = 7
)

func (Proto) Encode(rec model.Record) ([]byte, error) {
	var b []byte
	switch r := rec.(type) {
	case model.Ticker:
		b = appendString(b, tickerPair, r.Pair)
		b = appendDouble(b, tickerPrice, r.LastPrice)
	case model.Spread:
		b = appendString(b, spreadPair, r.Pair)
		b = appendDouble(b, spreadBid, r.BidPrice)
		b = appendDouble(b, spreadAsk, r.AskPrice)
		b = appendString(b, spreadTime, r.Timestamp)
		b = appendDouble(b, spreadBidVolume, r.BidVolume)
		b = appendDouble(b, spreadAskVolume, r.AskVolume)
	case model.Candle:
		b = appendString(b, ohlcPair, r.Pair)
		b = appendString(b, ohlcBegin, r.IntervalStart)
		b = appendString(b, ohlcEnd, r.IntervalEnd)
		b = appendDouble(b, ohlcOpen, r.Open)
		b = appendDouble(b, ohlcHigh, r.High)
		b = appendDouble(b, ohlcLow, r.Low)
		b = appendDouble(b, ohlcClose, r.Close)
		b = appendDouble(b, ohlcVWAP, r.VWAP)
		b = appendDouble(b, ohlcVolume, r.Volume)
		b = appendVarint(b, ohlcTrades, uint64(r.TradeCount))
		b = appendVarint(b, ohlcFrequency, uint64(r.Frequency))
	case model.Trade:
		b = appendString(b, tradePair, r.Pair)
		b = appendDouble(b, tradePrice, r.Price)
		b = appendDouble(b, tradeVolume, r.Volume)
		b = appendString(b, tradeTime, r.Timestamp)
		b = appendVarint(b, tradeSide, uint64(r.Side))
		b = appendVarint(b, tradeOrderType, uint64(r.OrderKind))
		b = appendString(b, tradeMisc, r.Misc)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownRecord, rec)
	}
	if b == nil {
		b = []byte{}
	}
	return b, nil
}

// KindForTopic recovers the record kind from a bus topic.
func KindForTopic(topic string) (model.Kind, bool) {
	switch {
	case strings.HasPrefix(topic, "Ticker - "):
		return model.KindTicker, true
	case strings.HasPrefix(topic, "Spread - "):
		return model.KindSpread, true
	case strings.HasPrefix(topic, "OHLC - "):
		return model.KindOHLC, true
	case strings.HasPrefix(topic, "Trade - "):
		return model.KindTrade, true
	default:
		return "", false
	}
}

// Decode parses a payload of the given kind. Unknown fields are skipped.
func (Proto) Decode(kind model.Kind, b []byte) (model.Record, error) {
	switch kind {
	case model.KindTicker:
		var r model.Ticker
		err := walk(b, func(num protowire.Number, v value) {
			switch num {
			case tickerPair:
				r.Pair = v.str()
			case tickerPrice:
				r.LastPrice = v.double()
			}
		})
		return r, err
	case model.KindSpread:
		var r model.Spread
		err := walk(b, func(num protowire.Number, v value) {
			switch num {
			case spreadPair:
				r.Pair = v.str()
			case spreadBid:
				r.BidPrice = v.double()
			case spreadAsk:
				r.AskPrice = v.double()
			case spreadTime:
				r.Timestamp = v.str()
			case spreadBidVolume:
				r.BidVolume = v.double()
			case spreadAskVolume:
				r.AskVolume = v.double()
			}
		})
		return r, err
	case model.KindOHLC:
		var r model.Candle
		err := walk(b, func(num protowire.Number, v value) {
			switch num {
			case ohlcPair:
				r.Pair = v.str()
			case ohlcBegin:
				r.IntervalStart = v.str()
			case ohlcEnd:
				r.IntervalEnd = v.str()
			case ohlcOpen:
				r.Open = v.double()
			case ohlcHigh:
				r.High = v.double()
			case ohlcLow:
				r.Low = v.double()
			case ohlcClose:
				r.Close = v.double()
			case ohlcVWAP:
				r.VWAP = v.double()
			case ohlcVolume:
				r.Volume = v.double()
			case ohlcTrades:
				r.TradeCount = int64(v.varint)
			case ohlcFrequency:
				r.Frequency = model.Frequency(v.varint)
			}
		})
		return r, err
	case model.KindTrade:
		var r model.Trade
		err := walk(b, func(num protowire.Number, v value) {
			switch num {
			case tradePair:
				r.Pair = v.str()
			case tradePrice:
				r.Price = v.double()
			case tradeVolume:
				r.Volume = v.double()
			case tradeTime:
				r.Timestamp = v.str()
			case tradeSide:
				r.Side = model.Side(v.varint)
			case tradeOrderType:
				r.OrderKind = model.OrderKind(v.varint)
			case tradeMisc:
				r.Misc = v.str()
			}
		})
		return r, err
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecord, kind)
	}
}

// proto3 leaves default values off the wire.

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 && !math.Signbit(v) {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

type value struct {
	typ    protowire.Type
	varint uint64
	fixed  uint64
	bytes  []byte
}

func (v value) str() string {
	if v.typ != protowire.BytesType {
		return ""
	}
	return string(v.bytes)
}

func (v value) double() float64 {
	if v.typ != protowire.Fixed64Type {
		return 0
	}
	return math.Float64frombits(v.fixed)
}

func walk(b []byte, fn func(protowire.Number, value)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		v := value{typ: typ}
		switch typ {
		case protowire.VarintType:
			v.varint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			v.fixed, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			v.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		fn(num, v)
	}
	return nil
}
