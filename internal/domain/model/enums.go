package model

import "fmt"

// Frequency is the candle interval label derived from the subscribed interval.
type Frequency int

const (
	FrequencyUnknown Frequency = iota
	FrequencyMinute
	FrequencyHourly
	FrequencyDaily
)

// FrequencyForInterval maps a subscription interval in minutes to its label.
// Only 1, 60 and 1440 are supported.
func FrequencyForInterval(interval int) (Frequency, bool) {
	switch interval {
	case 1:
		return FrequencyMinute, true
	case 60:
		return FrequencyHourly, true
	case 1440:
		return FrequencyDaily, true
	default:
		return FrequencyUnknown, false
	}
}

// Interval is the inverse of FrequencyForInterval.
func (f Frequency) Interval() int {
	switch f {
	case FrequencyMinute:
		return 1
	case FrequencyHourly:
		return 60
	case FrequencyDaily:
		return 1440
	default:
		return 0
	}
}

func (f Frequency) String() string {
	switch f {
	case FrequencyMinute:
		return "Minute"
	case FrequencyHourly:
		return "Hourly"
	case FrequencyDaily:
		return "Daily"
	default:
		return fmt.Sprintf("Frequency(%d)", int(f))
	}
}

// Side is the side of the order that triggered a trade.
type Side int

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
)

// ParseSide maps the wire codes "b" and "s". Anything else is SideUnknown.
func ParseSide(code string) Side {
	switch code {
	case "b":
		return SideBuy
	case "s":
		return SideSell
	default:
		return SideUnknown
	}
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "Buy"
	case SideSell:
		return "Sell"
	default:
		return "Unknown"
	}
}

// OrderKind is the type of the order that triggered a trade.
type OrderKind int

const (
	OrderKindUnknown OrderKind = iota
	OrderKindMarket
	OrderKindLimit
)

// ParseOrderKind maps the wire codes "m" and "l". Anything else is OrderKindUnknown.
func ParseOrderKind(code string) OrderKind {
	switch code {
	case "m":
		return OrderKindMarket
	case "l":
		return OrderKindLimit
	default:
		return OrderKindUnknown
	}
}

func (k OrderKind) String() string {
	switch k {
	case OrderKindMarket:
		return "Market"
	case OrderKindLimit:
		return "Limit"
	default:
		return "Unknown"
	}
}
