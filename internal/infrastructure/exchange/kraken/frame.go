package kraken

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"marketrelay/internal/domain/model"
)

// frame is the only data shape the public feed sends:
//
//	[channelID, payload..., channelName, pair]
//
// Book frames may carry two payload objects and older feeds omit the channel
// name. Events and heartbeats are JSON objects and never parse as a frame.
type frame struct {
	channelID int64
	payloads  []json.RawMessage
	channel   string
	pair      string
}

func parseFrame(raw []byte) (frame, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return frame{}, model.ErrNotDataMessage
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil || len(elems) < 3 {
		return frame{}, model.ErrNotDataMessage
	}

	var f frame
	if err := json.Unmarshal(elems[0], &f.channelID); err != nil {
		return frame{}, model.ErrNotDataMessage
	}
	end := len(elems) - 1
	if err := json.Unmarshal(elems[end], &f.pair); err != nil || f.pair == "" {
		return frame{}, model.ErrNotDataMessage
	}
	if end >= 3 {
		var name string
		if err := json.Unmarshal(elems[end-1], &name); err == nil {
			f.channel = name
			end--
		}
	}
	f.payloads = elems[1:end]
	if len(f.payloads) == 0 {
		return frame{}, model.ErrNotDataMessage
	}
	return f, nil
}

// is reports whether the frame belongs to the given channel. Frames without a
// channel name are accepted and left to the payload decode to reject.
func (f frame) is(kind model.Kind) bool {
	return f.channel == "" || strings.HasPrefix(f.channel, string(kind))
}

func malformed(what string, raw json.RawMessage) error {
	return fmt.Errorf("%w: %s %s", model.ErrMalformedField, what, string(raw))
}

// text accepts a JSON string or a bare JSON number and returns its text.
func text(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false
	}
	return n.String(), true
}

func parseFloat(what string, raw json.RawMessage) (float64, error) {
	s, ok := text(raw)
	if !ok {
		return 0, malformed(what, raw)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, malformed(what, raw)
	}
	return v, nil
}

func parseInt(what string, raw json.RawMessage) (int64, error) {
	s, ok := text(raw)
	if !ok {
		return 0, malformed(what, raw)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, malformed(what, raw)
	}
	return v, nil
}

// parseTime turns fractional epoch seconds into the canonical second-precision
// layout. The fraction is truncated, not rounded.
func parseTime(what string, raw json.RawMessage, loc *time.Location) (string, error) {
	secs, err := parseFloat(what, raw)
	if err != nil {
		return "", err
	}
	whole, frac := math.Modf(secs)
	ts := time.Unix(int64(whole), int64(frac*1e9))
	if loc != nil {
		ts = ts.In(loc)
	}
	return ts.Format(model.TimeLayout), nil
}

func parseString(what string, raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", malformed(what, raw)
	}
	return s, nil
}

func array(what string, raw json.RawMessage, min int) ([]json.RawMessage, error) {
	var out []json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil || len(out) < min {
		return nil, malformed(what, raw)
	}
	return out, nil
}
