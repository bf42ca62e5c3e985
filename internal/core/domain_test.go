package core

import (
	"errors"
	"testing"
	"time"
)

func TestTransaction_Validate(t *testing.T) {
	valid := Transaction{
		ID:          "tx-1",
		Direction:   Exit,
		Category:    "Compra",
		Amount:      Money{Cents: 100},
		Description: "supplies",
		Timestamp:   time.Now(),
	}

	tests := []struct {
		name    string
		mutate  func(tx *Transaction)
		wantErr error
	}{
		{name: "valid", mutate: func(tx *Transaction) {}},
		{
			name:    "bad direction",
			mutate:  func(tx *Transaction) { tx.Direction = "sideways" },
			wantErr: ErrUnknownDirection,
		},
		{
			name:    "zero amount",
			mutate:  func(tx *Transaction) { tx.Amount = Money{} },
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			mutate:  func(tx *Transaction) { tx.Amount = Money{Cents: -5} },
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "blank description",
			mutate:  func(tx *Transaction) { tx.Description = "   " },
			wantErr: ErrEmptyDescription,
		},
		{
			name:    "blank category",
			mutate:  func(tx *Transaction) { tx.Category = "" },
			wantErr: ErrInvalidCategoryName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := valid
			tt.mutate(&tx)
			err := tx.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransaction_Signed(t *testing.T) {
	entry := Transaction{Direction: Entry, Amount: Money{Cents: 1500}}
	if got := entry.Signed(); got != 1500 {
		t.Errorf("entry Signed() = %d, want 1500", got)
	}
	exit := Transaction{Direction: Exit, Amount: Money{Cents: 1500}}
	if got := exit.Signed(); got != -1500 {
		t.Errorf("exit Signed() = %d, want -1500", got)
	}
}

func TestDefaultDocument(t *testing.T) {
	doc := DefaultDocument()

	if doc.SchemaVersion != SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", doc.SchemaVersion, SchemaVersion)
	}
	if !doc.HasCategory(Entry, FallbackCategory) || !doc.HasCategory(Exit, FallbackCategory) {
		t.Error("fallback category must be present in both registries")
	}
	if !doc.HasCategory(Entry, "Salário") {
		t.Error("default entry categories missing")
	}
	if !doc.HasCategory(Exit, "Alimentação") {
		t.Error("default exit categories missing")
	}
	if doc.Balance.Cents != 0 {
		t.Errorf("new ledger balance = %d, want 0", doc.Balance.Cents)
	}
	if !doc.Notifications.LimitAlertEnabled {
		t.Error("limit alerts default to enabled")
	}
	if doc.Notifications.DailyReminderEnabled {
		t.Error("daily reminder defaults to disabled")
	}
}

func TestLedgerDocument_HasCategory_CaseSensitive(t *testing.T) {
	doc := DefaultDocument()
	if doc.HasCategory(Exit, "alimentação") {
		t.Error("category matching must be case-sensitive")
	}
}
