package cost

import (
	"sync"

	"github.com/rotisserie/eris"
)

// ErrBudgetExhausted is returned by Charge once the limit is reached.
var ErrBudgetExhausted = eris.New("cost: budget exhausted")

// Budget tracks spend against a USD ceiling. A zero or negative limit means
// unlimited.
type Budget struct {
	mu    sync.Mutex
	limit float64
	spent float64
}

// NewBudget creates a budget with the given USD limit.
func NewBudget(limit float64) *Budget {
	return &Budget{limit: limit}
}

// Charge records usd against the budget. The spend is always recorded; the
// error reports that the ceiling has now been reached.
func (b *Budget) Charge(usd float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.spent += usd
	if b.limit > 0 && b.spent >= b.limit {
		return ErrBudgetExhausted
	}
	return nil
}

// Exhausted reports whether further spend should be refused.
func (b *Budget) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.limit > 0 && b.spent >= b.limit
}

// Spent returns the total recorded spend.
func (b *Budget) Spent() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spent
}

// Remaining returns the unspent amount, or -1 for an unlimited budget.
func (b *Budget) Remaining() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.limit <= 0 {
		return -1
	}
	return max(b.limit-b.spent, 0)
}
