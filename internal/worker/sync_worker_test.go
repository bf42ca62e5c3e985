package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"caixa/internal/amqp"
	"caixa/internal/core"
)

type fakeSource struct {
	docs map[string]*core.LedgerDocument
}

func (f *fakeSource) Transaction(ctx context.Context, userID, transactionID string) (core.Transaction, error) {
	doc, ok := f.docs[userID]
	if !ok {
		return core.Transaction{}, errors.New("no such user")
	}
	for _, tx := range doc.Transactions {
		if tx.ID == transactionID {
			return tx, nil
		}
	}
	return core.Transaction{}, errors.New("no such transaction")
}

func (f *fakeSource) Document(ctx context.Context, userID string) (*core.LedgerDocument, error) {
	doc, ok := f.docs[userID]
	if !ok {
		return nil, errors.New("no such user")
	}
	return doc, nil
}

func (f *fakeSource) ListUsers(ctx context.Context) ([]string, error) {
	users := make([]string, 0, len(f.docs))
	for u := range f.docs {
		users = append(users, u)
	}
	return users, nil
}

type fakeExporter struct {
	appended []core.Transaction
	fail     bool
}

func (f *fakeExporter) AppendTransaction(ctx context.Context, userID string, tx core.Transaction) (string, error) {
	if f.fail {
		return "", errors.New("sheets unavailable")
	}
	f.appended = append(f.appended, tx)
	return "Ledger!A2:F2", nil
}

func docWithTransaction(id string, ts time.Time) *core.LedgerDocument {
	doc := core.DefaultDocument()
	doc.Transactions = []core.Transaction{{
		ID:          id,
		Direction:   core.Exit,
		Category:    "Compra",
		Amount:      core.Money{Cents: 1500},
		Description: "supplies",
		Timestamp:   ts,
	}}
	doc.Balance = core.Money{Cents: -1500}
	return doc
}

func TestSyncWorker_HandleTransactionSync(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	t.Run("exports the referenced transaction", func(t *testing.T) {
		source := &fakeSource{docs: map[string]*core.LedgerDocument{
			"user1": docWithTransaction("tx-1", ts),
		}}
		exporter := &fakeExporter{}
		w := NewSyncWorker(source, exporter)

		err := w.HandleTransactionSync(ctx, &amqp.TransactionSyncMessage{
			UserID:        "user1",
			TransactionID: "tx-1",
		})
		if err != nil {
			t.Fatalf("HandleTransactionSync() error = %v", err)
		}
		if len(exporter.appended) != 1 || exporter.appended[0].ID != "tx-1" {
			t.Errorf("appended = %v, want tx-1", exporter.appended)
		}
	})

	t.Run("unknown transaction is an error", func(t *testing.T) {
		source := &fakeSource{docs: map[string]*core.LedgerDocument{
			"user1": docWithTransaction("tx-1", ts),
		}}
		w := NewSyncWorker(source, &fakeExporter{})

		err := w.HandleTransactionSync(ctx, &amqp.TransactionSyncMessage{
			UserID:        "user1",
			TransactionID: "missing",
		})
		if err == nil {
			t.Error("expected error for unknown transaction")
		}
	})

	t.Run("export failure propagates for requeue", func(t *testing.T) {
		source := &fakeSource{docs: map[string]*core.LedgerDocument{
			"user1": docWithTransaction("tx-1", ts),
		}}
		w := NewSyncWorker(source, &fakeExporter{fail: true})

		err := w.HandleTransactionSync(ctx, &amqp.TransactionSyncMessage{
			UserID:        "user1",
			TransactionID: "tx-1",
		})
		if err == nil {
			t.Error("expected error when export fails")
		}
	})

	t.Run("nil exporter acks without effect", func(t *testing.T) {
		source := &fakeSource{docs: map[string]*core.LedgerDocument{
			"user1": docWithTransaction("tx-1", ts),
		}}
		w := NewSyncWorker(source, nil)

		err := w.HandleTransactionSync(ctx, &amqp.TransactionSyncMessage{
			UserID:        "user1",
			TransactionID: "tx-1",
		})
		if err != nil {
			t.Errorf("HandleTransactionSync() error = %v, want nil", err)
		}
	})
}

func TestSyncWorker_RunDailyReminders(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC)

	quiet := docWithTransaction("tx-old", now.AddDate(0, 0, -2))
	quiet.Notifications.DailyReminderEnabled = true

	active := docWithTransaction("tx-today", now.Add(-2*time.Hour))
	active.Notifications.DailyReminderEnabled = true

	optedOut := docWithTransaction("tx-old2", now.AddDate(0, 0, -2))
	optedOut.Notifications.DailyReminderEnabled = false

	source := &fakeSource{docs: map[string]*core.LedgerDocument{
		"quiet":     quiet,
		"active":    active,
		"opted-out": optedOut,
	}}
	w := NewSyncWorker(source, nil)
	w.now = func() time.Time { return now }

	reminded, err := w.RunDailyReminders(ctx)
	if err != nil {
		t.Fatalf("RunDailyReminders() error = %v", err)
	}
	if reminded != 1 {
		t.Errorf("reminded = %d, want 1 (only the quiet opted-in user)", reminded)
	}
}
