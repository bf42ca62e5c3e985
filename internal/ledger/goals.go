package ledger

import (
	"time"

	"caixa/internal/core"
)

// GoalStatus is the result of evaluating the monthly spend limit.
type GoalStatus struct {
	MonthlySpend core.Money
	SpendLimit   core.Money
	// LimitBreached is set when a limit is configured and the month's
	// exits exceed it. Whether the user is actually alerted depends on
	// their notification settings; that is the caller's call.
	LimitBreached bool
}

// MonthWindow returns the first and last instant of the calendar month
// containing t, in t's location.
func MonthWindow(t time.Time) (time.Time, time.Time) {
	year, month, _ := t.Date()
	start := time.Date(year, month, 1, 0, 0, 0, 0, t.Location())
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}

// DayWindow returns the first and last instant of the calendar day
// containing t, in t's location.
func DayWindow(t time.Time) (time.Time, time.Time) {
	year, month, day := t.Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, t.Location())
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end
}

// EvaluateGoals sums the current month's exits and checks them against
// the configured spend limit. A zero limit disables the check.
func EvaluateGoals(doc *core.LedgerDocument, now time.Time) GoalStatus {
	start, end := MonthWindow(now)

	var spend int64
	for _, tx := range doc.Transactions {
		if tx.Direction != core.Exit || tx.Timestamp.IsZero() {
			continue
		}
		if tx.Timestamp.Before(start) || tx.Timestamp.After(end) {
			continue
		}
		spend += tx.Amount.Cents
	}

	limit := doc.Goals.MonthlySpendLimit
	return GoalStatus{
		MonthlySpend:  core.Money{Cents: spend},
		SpendLimit:    limit,
		LimitBreached: limit.Cents > 0 && spend > limit.Cents,
	}
}

// SavingsProgress returns the percentage of the monthly savings target
// covered by periodBalance. A negative period balance counts as zero
// progress; ok is false when no target is configured.
func SavingsProgress(periodBalance core.Money, target core.Money) (pct float64, ok bool) {
	if target.Cents <= 0 {
		return 0, false
	}
	bal := periodBalance.Cents
	if bal < 0 {
		bal = 0
	}
	return float64(bal) / float64(target.Cents) * 100, true
}
