package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"caixa/internal/cache"
	"caixa/internal/core"
	"caixa/internal/ledger"
	"caixa/internal/storage"
)

// Publisher is the queue side of the service. Implemented by amqp.Client;
// a nil Publisher disables publishing.
type Publisher interface {
	PublishTransactionSync(ctx context.Context, userID, transactionID string) error
	PublishLimitAlert(ctx context.Context, userID string, spentCents, limitCents int64) error
}

// Store is the persistence side of the service. Implemented by
// storage.SQLiteRepository.
type Store interface {
	Load(ctx context.Context, userID string) (*core.LedgerDocument, int64, error)
	Save(ctx context.Context, userID string, doc *core.LedgerDocument, version int64) error
	ListUsers(ctx context.Context) ([]string, error)
}

// AppendResult is returned by Append: the committed transaction, the new
// balance, and the month's goal standing after the commit.
type AppendResult struct {
	Transaction core.Transaction
	Balance     core.Money
	Goal        ledger.GoalStatus
	// Alerted is set when a limit breach was published to the queue.
	Alerted bool
}

// AdjustResult is returned by AdjustBalance. Transaction is nil when the
// requested balance already matched and nothing was recorded.
type AdjustResult struct {
	Transaction *core.Transaction
	Balance     core.Money
}

// ClosingPreview pairs a pending closing with whether the day was
// already closed and needs an explicit reconfirmation.
type ClosingPreview struct {
	Pending        core.ClosingRecord
	NeedsReconfirm bool
}

// LedgerService orchestrates ledger operations across SQLite and AMQP.
// All mutations for a user are serialized through a per-user lock, and
// saves additionally carry the optimistic version check so that other
// writers (reminder worker, future processes) cannot clobber.
type LedgerService struct {
	store     Store
	publisher Publisher
	reports   *cache.LRU[ledger.Report]
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLedgerService(store Store, publisher Publisher, reports *cache.LRU[ledger.Report]) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
		reports:   reports,
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *LedgerService) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

// mutate loads the user's ledger, applies fn and saves it back. A single
// version conflict is retried once against a fresh load; fn must
// therefore be safe to run twice.
func (s *LedgerService) mutate(ctx context.Context, userID string, fn func(doc *core.LedgerDocument) error) (*core.LedgerDocument, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	for attempt := 0; ; attempt++ {
		doc, version, err := s.store.Load(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load ledger: %w", err)
		}
		if err := fn(doc); err != nil {
			return nil, err
		}
		err = s.store.Save(ctx, userID, doc, version)
		if err == nil {
			return doc, nil
		}
		if errors.Is(err, storage.ErrVersionConflict) && attempt == 0 {
			slog.WarnContext(ctx, "Ledger version conflict, retrying", "user_id", userID)
			continue
		}
		return nil, fmt.Errorf("save ledger: %w", err)
	}
}

// Append commits a transaction, evaluates the month's spend limit and
// publishes the sync (and, on a fresh breach with alerts enabled, the
// limit alert). Publish failures are logged, never returned: the commit
// already happened.
func (s *LedgerService) Append(ctx context.Context, userID string, dir core.Direction, category string, amount core.Money, description string) (AppendResult, error) {
	var res AppendResult
	doc, err := s.mutate(ctx, userID, func(doc *core.LedgerDocument) error {
		tx, err := ledger.Append(doc, s.now(), dir, category, amount, description)
		if err != nil {
			return err
		}
		res.Transaction = tx
		return nil
	})
	if err != nil {
		return AppendResult{}, err
	}
	res.Balance = doc.Balance
	res.Goal = ledger.EvaluateGoals(doc, s.now())

	if s.publisher != nil {
		if err := s.publisher.PublishTransactionSync(ctx, userID, res.Transaction.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to publish transaction sync",
				"user_id", userID, "transaction_id", res.Transaction.ID, "error", err)
		}
		if res.Goal.LimitBreached && doc.Notifications.LimitAlertEnabled {
			err := s.publisher.PublishLimitAlert(ctx, userID, res.Goal.MonthlySpend.Cents, res.Goal.SpendLimit.Cents)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to publish limit alert",
					"user_id", userID, "error", err)
			} else {
				res.Alerted = true
			}
		}
	}
	return res, nil
}

// AdjustBalance sets the balance to newBalance by recording a synthetic
// adjustment transaction for the difference.
func (s *LedgerService) AdjustBalance(ctx context.Context, userID string, newBalance core.Money) (AdjustResult, error) {
	var res AdjustResult
	doc, err := s.mutate(ctx, userID, func(doc *core.LedgerDocument) error {
		tx, err := ledger.AdjustBalance(doc, s.now(), newBalance)
		if err != nil {
			return err
		}
		res.Transaction = tx
		return nil
	})
	if err != nil {
		return AdjustResult{}, err
	}
	res.Balance = doc.Balance

	if s.publisher != nil && res.Transaction != nil {
		if err := s.publisher.PublishTransactionSync(ctx, userID, res.Transaction.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to publish transaction sync",
				"user_id", userID, "transaction_id", res.Transaction.ID, "error", err)
		}
	}
	return res, nil
}

func (s *LedgerService) AddCategory(ctx context.Context, userID string, dir core.Direction, name string) error {
	_, err := s.mutate(ctx, userID, func(doc *core.LedgerDocument) error {
		return ledger.AddCategory(doc, dir, name)
	})
	return err
}

// RenameCategory returns how many transactions were rewritten.
func (s *LedgerService) RenameCategory(ctx context.Context, userID string, dir core.Direction, oldName, newName string) (int, error) {
	var touched int
	_, err := s.mutate(ctx, userID, func(doc *core.LedgerDocument) error {
		n, err := ledger.RenameCategory(doc, dir, oldName, newName)
		if err != nil {
			return err
		}
		touched = n
		return nil
	})
	return touched, err
}

// errSkipSave aborts a mutate without surfacing an error: the document
// was inspected but must not be written back.
var errSkipSave = errors.New("skip save")

// RemoveCategory removes a category, reassigning its transactions to the
// fallback. When the category is in use and confirmed is false, it
// reports ConfirmationRequired without mutating anything.
func (s *LedgerService) RemoveCategory(ctx context.Context, userID string, dir core.Direction, name string, confirmed bool) (ledger.RemoveResult, error) {
	var res ledger.RemoveResult
	_, err := s.mutate(ctx, userID, func(doc *core.LedgerDocument) error {
		r, err := ledger.RemoveCategory(doc, dir, name, confirmed)
		if err != nil {
			return err
		}
		res = r
		if r.ConfirmationRequired {
			return errSkipSave
		}
		return nil
	})
	if errors.Is(err, errSkipSave) {
		return res, nil
	}
	return res, err
}

func (s *LedgerService) SetSavingsTarget(ctx context.Context, userID string, target core.Money) error {
	_, err := s.mutate(ctx, userID, func(doc *core.LedgerDocument) error {
		if target.Cents < 0 {
			return core.ErrInvalidAmount
		}
		doc.Goals.MonthlySavingsTarget = target
		return nil
	})
	return err
}

func (s *LedgerService) SetSpendLimit(ctx context.Context, userID string, limit core.Money) error {
	_, err := s.mutate(ctx, userID, func(doc *core.LedgerDocument) error {
		if limit.Cents < 0 {
			return core.ErrInvalidAmount
		}
		doc.Goals.MonthlySpendLimit = limit
		return nil
	})
	return err
}

// ToggleLimitAlert flips the limit alert setting and returns the new value.
func (s *LedgerService) ToggleLimitAlert(ctx context.Context, userID string) (bool, error) {
	var enabled bool
	_, err := s.mutate(ctx, userID, func(doc *core.LedgerDocument) error {
		doc.Notifications.LimitAlertEnabled = !doc.Notifications.LimitAlertEnabled
		enabled = doc.Notifications.LimitAlertEnabled
		return nil
	})
	return enabled, err
}

// ToggleDailyReminder flips the daily reminder setting and returns the new value.
func (s *LedgerService) ToggleDailyReminder(ctx context.Context, userID string) (bool, error) {
	var enabled bool
	_, err := s.mutate(ctx, userID, func(doc *core.LedgerDocument) error {
		doc.Notifications.DailyReminderEnabled = !doc.Notifications.DailyReminderEnabled
		enabled = doc.Notifications.DailyReminderEnabled
		return nil
	})
	return enabled, err
}

// Document returns the user's ledger for read-only use.
func (s *LedgerService) Document(ctx context.Context, userID string) (*core.LedgerDocument, error) {
	doc, _, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return doc, nil
}

func (s *LedgerService) Balance(ctx context.Context, userID string) (core.Money, error) {
	doc, err := s.Document(ctx, userID)
	if err != nil {
		return core.Money{}, err
	}
	return doc.Balance, nil
}

func (s *LedgerService) Categories(ctx context.Context, userID string, dir core.Direction) ([]string, error) {
	doc, err := s.Document(ctx, userID)
	if err != nil {
		return nil, err
	}
	return doc.Categories(dir), nil
}

// Recent returns the user's n most recent transactions, newest first.
func (s *LedgerService) Recent(ctx context.Context, userID string, n int) ([]core.Transaction, error) {
	doc, err := s.Document(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ledger.Recent(doc, n), nil
}

// Transaction looks up a single transaction by ID. Used by the sync
// worker, which receives only identifiers on the queue.
func (s *LedgerService) Transaction(ctx context.Context, userID, transactionID string) (core.Transaction, error) {
	doc, err := s.Document(ctx, userID)
	if err != nil {
		return core.Transaction{}, err
	}
	for _, tx := range doc.Transactions {
		if tx.ID == transactionID {
			return tx, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("transaction %s not found for user %s", transactionID, userID)
}

// Report aggregates the user's transactions over [start, end]. Results
// are cached per document version, so a stale entry can never outlive a
// mutation.
func (s *LedgerService) Report(ctx context.Context, userID string, start, end time.Time) (ledger.Report, error) {
	doc, version, err := s.store.Load(ctx, userID)
	if err != nil {
		return ledger.Report{}, fmt.Errorf("load ledger: %w", err)
	}

	key := fmt.Sprintf("%s|%d|%d|%d", userID, version, start.Unix(), end.Unix())
	if s.reports != nil {
		if rep, ok := s.reports.Get(key); ok {
			return rep, nil
		}
	}

	filtered, skipped := ledger.FilterByRange(doc, start, end)
	if skipped > 0 {
		slog.WarnContext(ctx, "Skipped transactions with unreadable timestamps",
			"user_id", userID, "skipped", skipped)
	}
	rep := ledger.Aggregate(doc, filtered, start, end, s.now())

	if s.reports != nil {
		s.reports.Set(key, rep)
	}
	return rep, nil
}

// PrepareClosing computes today's pending closing without recording it.
func (s *LedgerService) PrepareClosing(ctx context.Context, userID string) (ClosingPreview, error) {
	doc, err := s.Document(ctx, userID)
	if err != nil {
		return ClosingPreview{}, err
	}
	now := s.now()
	return ClosingPreview{
		Pending:        ledger.PrepareClosing(doc, now),
		NeedsReconfirm: ledger.ClosingNeedsReconfirm(doc, now),
	}, nil
}

// ErrClosingChanged is returned by ConfirmClosing when the day's
// snapshot no longer matches the previewed record the user confirmed.
var ErrClosingChanged = errors.New("closing snapshot changed since preview")

// ConfirmClosing records the previewed closing. The snapshot is rebuilt
// inside the mutation; when a transaction landed between preview and
// confirmation, nothing is recorded and the fresh snapshot is returned
// with ErrClosingChanged so the caller can show it and ask again.
func (s *LedgerService) ConfirmClosing(ctx context.Context, userID string, previewed core.ClosingRecord) (core.ClosingRecord, error) {
	var rec core.ClosingRecord
	_, err := s.mutate(ctx, userID, func(doc *core.LedgerDocument) error {
		rec = ledger.PrepareClosing(doc, s.now())
		if rec != previewed {
			return errSkipSave
		}
		ledger.ConfirmClosing(doc, rec)
		return nil
	})
	if errors.Is(err, errSkipSave) {
		return rec, ErrClosingChanged
	}
	return rec, err
}

// Erase resets the user's ledger to the defaults. The row is kept; its
// version keeps advancing.
func (s *LedgerService) Erase(ctx context.Context, userID string) error {
	_, err := s.mutate(ctx, userID, func(doc *core.LedgerDocument) error {
		*doc = *core.DefaultDocument()
		return nil
	})
	return err
}

// ListUsers returns every user with a stored ledger.
func (s *LedgerService) ListUsers(ctx context.Context) ([]string, error) {
	return s.store.ListUsers(ctx)
}
