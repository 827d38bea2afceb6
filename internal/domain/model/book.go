package model

// BookSide selects the ask or bid half of a ladder.
type BookSide int

const (
	Ask BookSide = iota
	Bid
)

func (s BookSide) String() string {
	if s == Bid {
		return "bid"
	}
	return "ask"
}

// PriceLevel keeps price and volume in their textual wire form. The price
// string is the ladder key.
type PriceLevel struct {
	Price  string
	Volume string
}

// LevelUpdate is one record of a book delta.
type LevelUpdate struct {
	Price     string
	Volume    string
	Timestamp string
	Republish bool
}

// BookUpdate is a decoded book frame. A frame is a snapshot when it carries
// "as"/"bs" payloads and a delta when it carries "a"/"b" payloads.
// Both shapes may arrive for one pair in separate frames, never mixed in one.
type BookUpdate struct {
	Pair     string
	Snapshot bool

	Asks []LevelUpdate
	Bids []LevelUpdate
}

// Levels drops the delta-only fields. A nil input stays nil so an absent
// snapshot side can be told apart from an empty one.
func Levels(in []LevelUpdate) []PriceLevel {
	if in == nil {
		return nil
	}
	out := make([]PriceLevel, 0, len(in))
	for _, u := range in {
		out = append(out, PriceLevel{Price: u.Price, Volume: u.Volume})
	}
	return out
}
