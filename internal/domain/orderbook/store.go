package orderbook

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"marketrelay/internal/domain/model"
)

// DefaultDepth is the per-side level bound used when none is configured.
const DefaultDepth = 10

// ErrMalformedLevel is wrapped by every LevelError.
var ErrMalformedLevel = errors.New("malformed level")

// LevelError reports one book record whose price or volume did not parse.
// The rest of its batch is still applied.
type LevelError struct {
	Pair   string
	Side   model.BookSide
	Price  string
	Volume string
	Err    error
}

func (e *LevelError) Error() string {
	return fmt.Sprintf("%s %s level %q/%q: %v", e.Pair, e.Side, e.Price, e.Volume, e.Err)
}

func (e *LevelError) Unwrap() []error { return []error{ErrMalformedLevel, e.Err} }

type entry struct {
	price  decimal.Decimal
	volume string
}

type levels map[string]entry

// ladder is one pair's book. mu serializes every lookup/evict/insert sequence
// on it, so deltas for the same pair never interleave.
type ladder struct {
	mu   sync.Mutex
	asks levels
	bids levels
}

func (l *ladder) side(s model.BookSide) levels {
	if s == model.Bid {
		return l.bids
	}
	return l.asks
}

// Store owns one bounded ladder per pair. Ladders are created on first use and
// live for the lifetime of the Store.
type Store struct {
	depth int

	mu    sync.RWMutex
	pairs map[string]*ladder
}

func NewStore(depth int) *Store {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Store{depth: depth, pairs: make(map[string]*ladder)}
}

func (s *Store) Depth() int { return s.depth }

func (s *Store) ladder(pair string) *ladder {
	s.mu.RLock()
	l := s.pairs[pair]
	s.mu.RUnlock()
	if l != nil {
		return l
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l = s.pairs[pair]; l == nil {
		l = &ladder{asks: levels{}, bids: levels{}}
		s.pairs[pair] = l
	}
	return l
}

// Apply dispatches a decoded book frame to ApplySnapshot or ApplyDelta.
func (s *Store) Apply(u model.BookUpdate) error {
	if u.Snapshot {
		return s.ApplySnapshot(u.Pair, model.Levels(u.Asks), model.Levels(u.Bids))
	}
	var errs []error
	if u.Asks != nil {
		errs = append(errs, s.ApplyDelta(u.Pair, model.Ask, u.Asks))
	}
	if u.Bids != nil {
		errs = append(errs, s.ApplyDelta(u.Pair, model.Bid, u.Bids))
	}
	return errors.Join(errs...)
}

// ApplySnapshot replaces each side that is non-nil wholesale. A nil side is
// left untouched. Zero-volume levels are skipped, and levels beyond the depth
// bound are dropped in arrival order.
func (s *Store) ApplySnapshot(pair string, asks, bids []model.PriceLevel) error {
	l := s.ladder(pair)
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	if asks != nil {
		l.asks = s.fill(pair, model.Ask, asks, &errs)
	}
	if bids != nil {
		l.bids = s.fill(pair, model.Bid, bids, &errs)
	}
	return errors.Join(errs...)
}

func (s *Store) fill(pair string, side model.BookSide, in []model.PriceLevel, errs *[]error) levels {
	out := make(levels, s.depth)
	for _, lv := range in {
		price, vol, err := parseLevel(lv.Price, lv.Volume)
		if err != nil {
			*errs = append(*errs, &LevelError{Pair: pair, Side: side, Price: lv.Price, Volume: lv.Volume, Err: err})
			continue
		}
		if vol.IsZero() {
			continue
		}
		if _, ok := out[lv.Price]; !ok && len(out) >= s.depth {
			continue
		}
		out[lv.Price] = entry{price: price, volume: lv.Volume}
	}
	return out
}

// ApplyDelta merges records into one side of the pair's ladder, in order.
//
// Republished records are skipped. A zero volume removes the level if it is
// present and is a no-op otherwise. A new price on a full side first evicts
// the numerically highest price key on that side, for bids as well as asks.
// An existing price has its volume replaced.
//
// Records that fail to parse are reported as LevelErrors joined into the
// returned error; the remaining records still apply.
func (s *Store) ApplyDelta(pair string, side model.BookSide, records []model.LevelUpdate) error {
	l := s.ladder(pair)
	l.mu.Lock()
	defer l.mu.Unlock()

	book := l.side(side)
	var errs []error
	for _, rec := range records {
		if rec.Republish {
			continue
		}
		price, vol, err := parseLevel(rec.Price, rec.Volume)
		if err != nil {
			errs = append(errs, &LevelError{Pair: pair, Side: side, Price: rec.Price, Volume: rec.Volume, Err: err})
			continue
		}

		_, present := book[rec.Price]
		if vol.IsZero() {
			if present {
				delete(book, rec.Price)
			}
			continue
		}
		if !present && len(book) >= s.depth {
			// TODO: evict the lowest bid instead once the bid-side policy is confirmed.
			delete(book, highestKey(book))
		}
		book[rec.Price] = entry{price: price, volume: rec.Volume}
	}
	return errors.Join(errs...)
}

func parseLevel(price, volume string) (decimal.Decimal, decimal.Decimal, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("price: %w", err)
	}
	v, err := decimal.NewFromString(volume)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("volume: %w", err)
	}
	return p, v, nil
}

func highestKey(book levels) string {
	var (
		key  string
		best decimal.Decimal
		seen bool
	)
	for k, e := range book {
		if !seen || e.price.GreaterThan(best) {
			key, best, seen = k, e.price, true
		}
	}
	return key
}

// Book is a point-in-time copy of a ladder. Asks are sorted best (lowest)
// first and bids best (highest) first.
type Book struct {
	Pair string
	Asks []model.PriceLevel
	Bids []model.PriceLevel
}

// Book returns a sorted copy of the pair's ladder, or false if the pair has
// never been seen.
func (s *Store) Book(pair string) (Book, bool) {
	s.mu.RLock()
	l := s.pairs[pair]
	s.mu.RUnlock()
	if l == nil {
		return Book{}, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return Book{
		Pair: pair,
		Asks: sorted(l.asks, false),
		Bids: sorted(l.bids, true),
	}, true
}

// Top returns the best bid and best ask. Either may be the zero PriceLevel when
// its side is empty.
func (s *Store) Top(pair string) (bid, ask model.PriceLevel, ok bool) {
	b, ok := s.Book(pair)
	if !ok {
		return bid, ask, false
	}
	if len(b.Bids) > 0 {
		bid = b.Bids[0]
	}
	if len(b.Asks) > 0 {
		ask = b.Asks[0]
	}
	return bid, ask, true
}

// Len returns the number of levels on one side of a pair.
func (s *Store) Len(pair string, side model.BookSide) int {
	s.mu.RLock()
	l := s.pairs[pair]
	s.mu.RUnlock()
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.side(side))
}

// Pairs returns every pair with a ladder, sorted.
func (s *Store) Pairs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.pairs))
	for p := range s.pairs {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func sorted(book levels, desc bool) []model.PriceLevel {
	out := make([]model.PriceLevel, 0, len(book))
	for k, e := range book {
		out = append(out, model.PriceLevel{Price: k, Volume: e.volume})
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := book[out[i].Price].price, book[out[j].Price].price
		if desc {
			return pi.GreaterThan(pj)
		}
		return pi.LessThan(pj)
	})
	return out
}

// LevelErrors flattens the LevelErrors held in an error returned by Apply,
// ApplySnapshot or ApplyDelta.
func LevelErrors(err error) []*LevelError {
	if err == nil {
		return nil
	}
	if le, ok := err.(*LevelError); ok {
		return []*LevelError{le}
	}
	var out []*LevelError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, LevelErrors(e)...)
		}
	}
	return out
}
