package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"caixa/internal/amqp"
	"caixa/internal/core"
	"caixa/internal/ledger"
)

// LedgerSource is the read side the worker needs from the service.
type LedgerSource interface {
	Transaction(ctx context.Context, userID, transactionID string) (core.Transaction, error)
	Document(ctx context.Context, userID string) (*core.LedgerDocument, error)
	ListUsers(ctx context.Context) ([]string, error)
}

// TransactionExporter appends a committed transaction to the external
// sheet. Implemented by export.SheetsExporter.
type TransactionExporter interface {
	AppendTransaction(ctx context.Context, userID string, tx core.Transaction) (string, error)
}

// SyncWorker consumes queue messages: transaction syncs are exported to
// Google Sheets, limit alerts are delivered. It also runs the periodic
// daily reminder sweep.
type SyncWorker struct {
	source   LedgerSource
	exporter TransactionExporter
	now      func() time.Time
}

// NewSyncWorker creates the worker. A nil exporter disables the sheets
// export; sync messages are then acked without effect.
func NewSyncWorker(source LedgerSource, exporter TransactionExporter) *SyncWorker {
	return &SyncWorker{
		source:   source,
		exporter: exporter,
		now:      time.Now,
	}
}

var _ amqp.Handler = (*SyncWorker)(nil)

// HandleTransactionSync loads the referenced transaction and appends it
// to the sheet. Returning an error requeues the message.
func (w *SyncWorker) HandleTransactionSync(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing transaction sync",
		"user_id", msg.UserID,
		"transaction_id", msg.TransactionID)

	tx, err := w.source.Transaction(ctx, msg.UserID, msg.TransactionID)
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}

	if w.exporter == nil {
		slog.WarnContext(ctx, "No exporter configured, skipping sheet export",
			"transaction_id", msg.TransactionID)
		return nil
	}

	ref, err := w.exporter.AppendTransaction(ctx, msg.UserID, tx)
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}

	slog.InfoContext(ctx, "Successfully synced transaction",
		"user_id", msg.UserID,
		"transaction_id", msg.TransactionID,
		"sheets_ref", ref,
		"amount_cents", tx.Amount.Cents)
	return nil
}

// HandleLimitAlert delivers a spend limit breach notification. Delivery
// is a log line here; the presentation process tails the worker output.
func (w *SyncWorker) HandleLimitAlert(ctx context.Context, msg *amqp.LimitAlertMessage) error {
	slog.WarnContext(ctx, "Monthly spend limit exceeded",
		"user_id", msg.UserID,
		"spent_cents", msg.SpentCents,
		"limit_cents", msg.LimitCents,
		"over_cents", msg.SpentCents-msg.LimitCents)
	return nil
}

// RunDailyReminders sweeps all users once and emits a reminder for each
// user who opted in and has not recorded anything today. Per-user
// failures are logged and skipped.
func (w *SyncWorker) RunDailyReminders(ctx context.Context) (reminded int, err error) {
	users, err := w.source.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	now := w.now()
	for _, userID := range users {
		doc, err := w.source.Document(ctx, userID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load ledger for reminder",
				"user_id", userID, "error", err)
			continue
		}
		if !doc.Notifications.DailyReminderEnabled {
			continue
		}
		if hasActivityToday(doc, now) {
			continue
		}

		slog.InfoContext(ctx, "Daily reminder: no transactions recorded today",
			"user_id", userID,
			"balance_cents", doc.Balance.Cents)
		reminded++
	}
	return reminded, nil
}

// RunReminderLoop runs the reminder sweep on a fixed interval until ctx
// is cancelled.
func (w *SyncWorker) RunReminderLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "Starting daily reminder loop", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping daily reminder loop", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			n, err := w.RunDailyReminders(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "Reminder sweep failed", "error", err)
				continue
			}
			slog.InfoContext(ctx, "Reminder sweep completed", "reminded", n)
		}
	}
}

func hasActivityToday(doc *core.LedgerDocument, now time.Time) bool {
	start, end := ledger.DayWindow(now)
	for _, tx := range doc.Transactions {
		if tx.Timestamp.IsZero() {
			continue
		}
		if !tx.Timestamp.Before(start) && !tx.Timestamp.After(end) {
			return true
		}
	}
	return false
}
