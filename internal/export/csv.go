// Package export writes ledger data to external formats: CSV files for
// local export and Google Sheets for the sync worker.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"caixa/internal/core"
)

func formatCents(m core.Money) string {
	return fmt.Sprintf("%.2f", m.Units())
}

// WriteTransactionsCSV writes the transactions as CSV, oldest first,
// one row per transaction.
func WriteTransactionsCSV(w io.Writer, txs []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "timestamp", "direction", "category", "amount", "description"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, tx := range txs {
		ts := ""
		if !tx.Timestamp.IsZero() {
			ts = tx.Timestamp.Format(time.RFC3339)
		}
		row := []string{
			tx.ID,
			ts,
			string(tx.Direction),
			tx.Category,
			formatCents(tx.Amount),
			tx.Description,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write transaction %s: %w", tx.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteClosingsCSV writes the daily closing records as CSV.
func WriteClosingsCSV(w io.Writer, closings []core.ClosingRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "opening_balance", "closing_balance", "total_entries", "total_exits"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, c := range closings {
		row := []string{
			c.Date,
			formatCents(c.OpeningBalance),
			formatCents(c.ClosingBalance),
			formatCents(c.TotalEntries),
			formatCents(c.TotalExits),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write closing %s: %w", c.Date, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLedgerCSV writes the full document as one CSV stream: a goals
// line, then transactions, then closings, separated by blank records.
func WriteLedgerCSV(w io.Writer, doc *core.LedgerDocument) error {
	cw := csv.NewWriter(w)
	goalRows := [][]string{
		{"balance", formatCents(doc.Balance)},
		{"monthly_savings_target", formatCents(doc.Goals.MonthlySavingsTarget)},
		{"monthly_spend_limit", formatCents(doc.Goals.MonthlySpendLimit)},
	}
	for _, row := range goalRows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	if err := WriteTransactionsCSV(w, doc.Transactions); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	return WriteClosingsCSV(w, doc.Closings)
}
