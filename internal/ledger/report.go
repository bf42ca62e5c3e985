package ledger

import (
	"sort"
	"time"

	"caixa/internal/core"
)

type (
	// CategoryTotal is one category's share of a direction's total
	// within a report period.
	CategoryTotal struct {
		Name    string
		Amount  core.Money
		Percent float64 // of the direction total; 0 when the total is 0
	}

	// GoalReport annotates a report with goal progress. Only present
	// when the queried range overlaps the current calendar month.
	GoalReport struct {
		SavingsTarget   core.Money
		SavingsProgress float64 // percent, clamped at >= 0
		HasSavings      bool
		SpendLimit      core.Money
		SpendUsed       float64 // percent of limit spent
		HasLimit        bool
	}

	// Report is the aggregation over a filtered transaction set.
	Report struct {
		Start, End    time.Time
		TotalEntries  core.Money
		TotalExits    core.Money
		PeriodBalance core.Money
		ByCategory    map[core.Direction][]CategoryTotal // sorted by descending amount
		Count         int
		Goal          *GoalReport
	}
)

// FilterByRange returns the transactions with start <= timestamp <= end.
// Transactions whose timestamp failed to decode (zero) or whose stored
// direction is not a known value are skipped; they are tolerated
// data-quality defects, counted by the skipped return for the storage
// boundary to log, never surfaced to callers.
func FilterByRange(doc *core.LedgerDocument, start, end time.Time) (filtered []core.Transaction, skipped int) {
	for _, tx := range doc.Transactions {
		if tx.Timestamp.IsZero() || !tx.Direction.Valid() {
			skipped++
			continue
		}
		if tx.Timestamp.Before(start) || tx.Timestamp.After(end) {
			continue
		}
		filtered = append(filtered, tx)
	}
	return filtered, skipped
}

// Aggregate produces the period totals, the per-direction category
// breakdowns and, when the range overlaps the current calendar month,
// the goal annotations.
func Aggregate(doc *core.LedgerDocument, filtered []core.Transaction, start, end, now time.Time) Report {
	var entries, exits int64
	byCat := map[core.Direction]map[string]int64{
		core.Entry: {},
		core.Exit:  {},
	}
	for _, tx := range filtered {
		totals, ok := byCat[tx.Direction]
		if !ok {
			// Unknown stored direction; FilterByRange skips these, but a
			// caller-assembled slice must not panic here either.
			continue
		}
		totals[tx.Category] += tx.Amount.Cents
		if tx.Direction == core.Entry {
			entries += tx.Amount.Cents
		} else {
			exits += tx.Amount.Cents
		}
	}

	rep := Report{
		Start:         start,
		End:           end,
		TotalEntries:  core.Money{Cents: entries},
		TotalExits:    core.Money{Cents: exits},
		PeriodBalance: core.Money{Cents: entries - exits},
		ByCategory:    map[core.Direction][]CategoryTotal{},
		Count:         len(filtered),
	}
	rep.ByCategory[core.Entry] = rankCategories(byCat[core.Entry], entries)
	rep.ByCategory[core.Exit] = rankCategories(byCat[core.Exit], exits)

	if overlapsCurrentMonth(start, end, now) {
		rep.Goal = buildGoalReport(doc, rep.PeriodBalance, rep.TotalExits)
	}
	return rep
}

func rankCategories(totals map[string]int64, directionTotal int64) []CategoryTotal {
	out := make([]CategoryTotal, 0, len(totals))
	for name, cents := range totals {
		ct := CategoryTotal{Name: name, Amount: core.Money{Cents: cents}}
		if directionTotal > 0 {
			ct.Percent = float64(cents) / float64(directionTotal) * 100
		}
		out = append(out, ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func overlapsCurrentMonth(start, end, now time.Time) bool {
	monthStart, monthEnd := MonthWindow(now)
	return !start.After(monthEnd) && !end.Before(monthStart)
}

func buildGoalReport(doc *core.LedgerDocument, periodBalance, totalExits core.Money) *GoalReport {
	gr := &GoalReport{
		SavingsTarget: doc.Goals.MonthlySavingsTarget,
		SpendLimit:    doc.Goals.MonthlySpendLimit,
	}
	if pct, ok := SavingsProgress(periodBalance, gr.SavingsTarget); ok {
		gr.SavingsProgress = pct
		gr.HasSavings = true
	}
	if gr.SpendLimit.Cents > 0 {
		gr.SpendUsed = float64(totalExits.Cents) / float64(gr.SpendLimit.Cents) * 100
		gr.HasLimit = true
	}
	if !gr.HasSavings && !gr.HasLimit {
		return nil
	}
	return gr
}
