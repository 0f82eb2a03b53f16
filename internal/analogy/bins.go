package analogy

import (
	"gdlmap/internal/gdl"
	"gdlmap/internal/logging"
)

// BinAssignment maps predicate names to bin ids in [0, NumBins). Predicates in
// the same bin are treated as probably related when scoring.
type BinAssignment struct {
	numBins int
	bins    map[string]int
	order   []string
}

// AssignBins distributes the predicates of ir over numBins bins round-robin.
//
// Rules are visited in AllRules order, head predicate first and then each body
// predicate; sentences without a predicate are skipped. A predicate keeps the
// bin it was first given and a repeat does not advance the counter. The
// counter then continues over predicates that appear only inside init facts.
func AssignBins(ir *gdl.IR, numBins int) (*BinAssignment, error) {
	if numBins < 1 {
		return nil, &ConfigError{Field: "num_bins", Value: numBins, Reason: "must be at least 1"}
	}

	b := &BinAssignment{numBins: numBins, bins: make(map[string]int)}
	next := 0
	assign := func(pred string) {
		if pred == "" {
			return
		}
		if _, ok := b.bins[pred]; ok {
			return
		}
		b.bins[pred] = next
		b.order = append(b.order, pred)
		next = (next + 1) % numBins
	}

	for _, r := range ir.AllRules() {
		assign(r.HeadPredicate())
		for _, p := range r.BodyPredicates() {
			assign(p)
		}
	}
	if ir != nil {
		for _, r := range ir.InitFacts() {
			if s, ok := r.InitContent(); ok {
				assign(s.Predicate())
			}
		}
	}

	logging.BinnerDebug("assigned %d predicates to %d bins", len(b.order), numBins)
	return b, nil
}

// NumBins returns the bin count the assignment was built with.
func (b *BinAssignment) NumBins() int {
	if b == nil {
		return 0
	}
	return b.numBins
}

// Bin returns the bin of pred.
func (b *BinAssignment) Bin(pred string) (int, bool) {
	if b == nil {
		return 0, false
	}
	n, ok := b.bins[pred]
	return n, ok
}

// Len returns the number of binned predicates.
func (b *BinAssignment) Len() int {
	if b == nil {
		return 0
	}
	return len(b.order)
}

// Predicates returns the binned predicates in assignment order.
func (b *BinAssignment) Predicates() []string {
	if b == nil {
		return nil
	}
	return append([]string(nil), b.order...)
}

// Members returns the predicates in bin, in assignment order.
func (b *BinAssignment) Members(bin int) []string {
	if b == nil {
		return nil
	}
	var out []string
	for _, p := range b.order {
		if b.bins[p] == bin {
			out = append(out, p)
		}
	}
	return out
}

// sameBin reports whether src (binned by b) and tgt (binned by other) share
// a bin id. Unbinned predicates never match.
func sameBin(b *BinAssignment, src string, other *BinAssignment, tgt string) bool {
	x, ok := b.Bin(src)
	if !ok {
		return false
	}
	y, ok := other.Bin(tgt)
	return ok && x == y
}
