package console

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"marketrelay/internal/application/port"
	"marketrelay/internal/domain/model"
)

// Sink prints one labelled, human-readable block per record.
type Sink struct {
	w io.Writer
}

func NewSink() port.RecordSink { return &Sink{w: os.Stdout} }

func NewSinkTo(w io.Writer) *Sink { return &Sink{w: w} }

type field struct {
	label string
	value string
}

func (s *Sink) WriteRecord(topic string, rec model.Record) error {
	var fields []field
	switch r := rec.(type) {
	case model.Ticker:
		fields = []field{{"Last trade price", num(r.LastPrice)}}
	case model.Spread:
		fields = []field{
			{"Bid price", num(r.BidPrice)},
			{"Ask price", num(r.AskPrice)},
			{"Time", r.Timestamp},
			{"Bid volume", num(r.BidVolume)},
			{"Ask volume", num(r.AskVolume)},
		}
	case model.Candle:
		fields = []field{
			{"Begin time of interval", r.IntervalStart},
			{"End time of interval", r.IntervalEnd},
			{"Open price of interval", num(r.Open)},
			{"High price within interval", num(r.High)},
			{"Low price within interval", num(r.Low)},
			{"Close price of interval", num(r.Close)},
			{"Volume weighted average price within interval", num(r.VWAP)},
			{"Accumulated volume within interval", num(r.Volume)},
			{"Number of trades within interval", strconv.FormatInt(r.TradeCount, 10)},
		}
	case model.Trade:
		fields = []field{
			{"Price", num(r.Price)},
			{"Volume", num(r.Volume)},
			{"Time", r.Timestamp},
			{"Triggering order side", r.Side.String()},
			{"Triggering order type", r.OrderKind.String()},
			{"Misc", r.Misc},
		}
	default:
		return fmt.Errorf("console: unsupported record %T", rec)
	}

	if _, err := fmt.Fprintf(s.w, "%s\n", topic); err != nil {
		return err
	}
	for _, f := range fields {
		if _, err := fmt.Fprintf(s.w, "  %-46s %s\n", f.label+":", f.value); err != nil {
			return err
		}
	}
	return nil
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
