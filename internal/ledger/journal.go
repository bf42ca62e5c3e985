// Package ledger implements the operations of the cash-flow journal:
// appending transactions, category lifecycle, goal evaluation, daily
// closings and period reports. All operations work on an in-memory
// LedgerDocument; persistence is the caller's concern.
package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"caixa/internal/core"
)

// Append validates and records a new transaction, updating the derived
// balance. The category must be registered for the direction, or be the
// fallback category.
func Append(doc *core.LedgerDocument, now time.Time, dir core.Direction, category string, amount core.Money, description string) (core.Transaction, error) {
	if !dir.Valid() {
		return core.Transaction{}, core.ErrUnknownDirection
	}
	if err := amount.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if strings.TrimSpace(description) == "" {
		return core.Transaction{}, core.ErrEmptyDescription
	}
	if category != core.FallbackCategory && !doc.HasCategory(dir, category) {
		return core.Transaction{}, core.ErrUnknownCategory
	}

	tx := core.Transaction{
		ID:          uuid.NewString(),
		Direction:   dir,
		Category:    category,
		Amount:      amount,
		Description: strings.TrimSpace(description),
		Timestamp:   now,
	}
	doc.Transactions = append(doc.Transactions, tx)
	doc.Balance.Cents += tx.Signed()
	return tx, nil
}

// AdjustBalance sets the balance to newBalance by appending a synthetic
// adjustment transaction covering the difference. Returns nil when the
// balance already matches. Negative targets fail with ErrNegativeBalance.
func AdjustBalance(doc *core.LedgerDocument, now time.Time, newBalance core.Money) (*core.Transaction, error) {
	if newBalance.Cents < 0 {
		return nil, core.ErrNegativeBalance
	}
	delta := newBalance.Cents - doc.Balance.Cents
	if delta == 0 {
		return nil, nil
	}
	dir := core.Entry
	if delta < 0 {
		dir = core.Exit
		delta = -delta
	}
	tx := core.Transaction{
		ID:          uuid.NewString(),
		Direction:   dir,
		Category:    core.AdjustmentCategory,
		Amount:      core.Money{Cents: delta},
		Description: core.AdjustmentDescription,
		Timestamp:   now,
	}
	doc.Transactions = append(doc.Transactions, tx)
	doc.Balance.Cents += tx.Signed()
	return &tx, nil
}

// Recent returns up to n transactions, most recent first.
func Recent(doc *core.LedgerDocument, n int) []core.Transaction {
	if n <= 0 {
		return nil
	}
	total := len(doc.Transactions)
	if n > total {
		n = total
	}
	out := make([]core.Transaction, 0, n)
	for i := total - 1; i >= total-n; i-- {
		out = append(out, doc.Transactions[i])
	}
	return out
}

// DerivedBalance recomputes the balance from scratch. It exists to check
// the balance invariant; the document's Balance field is authoritative
// only as a cache of this sum.
func DerivedBalance(doc *core.LedgerDocument) core.Money {
	var sum int64
	for _, tx := range doc.Transactions {
		sum += tx.Signed()
	}
	return core.Money{Cents: sum}
}
