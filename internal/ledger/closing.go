package ledger

import (
	"time"

	"caixa/internal/core"
)

// PrepareClosing computes the daily reconciliation snapshot for the day
// containing now, without recording it. Read-only; calling it twice
// yields two independent pending records.
func PrepareClosing(doc *core.LedgerDocument, now time.Time) core.ClosingRecord {
	start, end := DayWindow(now)

	var entries, exits int64
	for _, tx := range doc.Transactions {
		if tx.Timestamp.IsZero() || !tx.Direction.Valid() {
			continue
		}
		if tx.Timestamp.Before(start) || tx.Timestamp.After(end) {
			continue
		}
		if tx.Direction == core.Entry {
			entries += tx.Amount.Cents
		} else {
			exits += tx.Amount.Cents
		}
	}

	dayNet := entries - exits
	return core.ClosingRecord{
		Date:           now.Format(core.DateLayout),
		OpeningBalance: core.Money{Cents: doc.Balance.Cents - dayNet},
		ClosingBalance: doc.Balance,
		TotalEntries:   core.Money{Cents: entries},
		TotalExits:     core.Money{Cents: exits},
	}
}

// ConfirmClosing records a pending closing. This is the only mutating
// step of the closing protocol.
func ConfirmClosing(doc *core.LedgerDocument, pending core.ClosingRecord) {
	doc.Closings = append(doc.Closings, pending)
	doc.LastClosingDate = pending.Date
}

// ClosingNeedsReconfirm reports whether a closing was already recorded
// for the day containing now. Same-day closings are allowed but require
// the caller to explicitly opt in; they are never silently deduplicated.
func ClosingNeedsReconfirm(doc *core.LedgerDocument, now time.Time) bool {
	return doc.LastClosingDate != "" && doc.LastClosingDate == now.Format(core.DateLayout)
}
