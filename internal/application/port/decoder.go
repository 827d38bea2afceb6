package port

import "marketrelay/internal/domain/model"

// FeedDecoder decodes raw upstream frames. Each method returns
// model.ErrNotDataMessage for frames that carry no data of its kind.
type FeedDecoder interface {
	DecodeTicker(raw []byte) (string, model.Ticker, error)
	DecodeSpread(raw []byte) (string, model.Spread, error)
	DecodeCandle(raw []byte, interval int) (string, model.Candle, error)
	DecodeTrade(raw []byte) (string, model.Trade, error)
	DecodeBookUpdate(raw []byte) (model.BookUpdate, error)
}
