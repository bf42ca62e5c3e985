package ledger

import (
	"errors"
	"testing"
	"time"

	"caixa/internal/core"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func TestAppend(t *testing.T) {
	t.Run("updates balance by signed amount", func(t *testing.T) {
		doc := core.DefaultDocument()

		if _, err := Append(doc, testNow, core.Entry, "Salário", core.Money{Cents: 200000}, "pay"); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if _, err := Append(doc, testNow, core.Exit, "Alimentação", core.Money{Cents: 15000}, "groceries"); err != nil {
			t.Fatalf("Append() error = %v", err)
		}

		if doc.Balance.Cents != 185000 {
			t.Errorf("Balance = %d, want 185000", doc.Balance.Cents)
		}
		if got := DerivedBalance(doc); got != doc.Balance {
			t.Errorf("DerivedBalance = %d, Balance = %d, must match", got.Cents, doc.Balance.Cents)
		}
	})

	t.Run("assigns unique ids", func(t *testing.T) {
		doc := core.DefaultDocument()
		a, _ := Append(doc, testNow, core.Entry, "Venda", core.Money{Cents: 100}, "one")
		b, _ := Append(doc, testNow, core.Entry, "Venda", core.Money{Cents: 100}, "two")
		if a.ID == "" || a.ID == b.ID {
			t.Errorf("ids = %q, %q, want distinct non-empty", a.ID, b.ID)
		}
	})

	t.Run("fallback category always accepted", func(t *testing.T) {
		doc := core.DefaultDocument()
		doc.CategoriesExit = []string{core.FallbackCategory}
		if _, err := Append(doc, testNow, core.Exit, core.FallbackCategory, core.Money{Cents: 100}, "misc"); err != nil {
			t.Errorf("Append() error = %v", err)
		}
	})

	t.Run("rejections", func(t *testing.T) {
		doc := core.DefaultDocument()
		tests := []struct {
			name     string
			dir      core.Direction
			category string
			amount   core.Money
			desc     string
			wantErr  error
		}{
			{"unknown direction", "sideways", "Venda", core.Money{Cents: 100}, "x", core.ErrUnknownDirection},
			{"zero amount", core.Entry, "Venda", core.Money{}, "x", core.ErrInvalidAmount},
			{"blank description", core.Entry, "Venda", core.Money{Cents: 100}, "  ", core.ErrEmptyDescription},
			{"unregistered category", core.Exit, "Mystery", core.Money{Cents: 100}, "x", core.ErrUnknownCategory},
			{"category from other direction", core.Entry, "Alimentação", core.Money{Cents: 100}, "x", core.ErrUnknownCategory},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := Append(doc, testNow, tt.dir, tt.category, tt.amount, tt.desc)
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Append() error = %v, want %v", err, tt.wantErr)
				}
			})
		}
		if len(doc.Transactions) != 0 {
			t.Error("rejected appends must not mutate the document")
		}
	})
}

func TestAdjustBalance(t *testing.T) {
	t.Run("raises balance with synthetic entry", func(t *testing.T) {
		doc := core.DefaultDocument()
		tx, err := AdjustBalance(doc, testNow, core.Money{Cents: 50000})
		if err != nil {
			t.Fatalf("AdjustBalance() error = %v", err)
		}
		if tx == nil {
			t.Fatal("expected a synthetic transaction")
		}
		if tx.Direction != core.Entry || tx.Amount.Cents != 50000 {
			t.Errorf("tx = %+v, want entry of 50000", tx)
		}
		if tx.Category != core.AdjustmentCategory {
			t.Errorf("Category = %s, want %s", tx.Category, core.AdjustmentCategory)
		}
		if doc.Balance.Cents != 50000 {
			t.Errorf("Balance = %d, want 50000", doc.Balance.Cents)
		}
	})

	t.Run("lowers balance with synthetic exit", func(t *testing.T) {
		doc := core.DefaultDocument()
		doc.Balance = core.Money{Cents: 80000}
		tx, err := AdjustBalance(doc, testNow, core.Money{Cents: 30000})
		if err != nil {
			t.Fatalf("AdjustBalance() error = %v", err)
		}
		if tx.Direction != core.Exit || tx.Amount.Cents != 50000 {
			t.Errorf("tx = %+v, want exit of 50000", tx)
		}
		if doc.Balance.Cents != 30000 {
			t.Errorf("Balance = %d, want 30000", doc.Balance.Cents)
		}
	})

	t.Run("no-op when balance matches", func(t *testing.T) {
		doc := core.DefaultDocument()
		doc.Balance = core.Money{Cents: 1000}
		tx, err := AdjustBalance(doc, testNow, core.Money{Cents: 1000})
		if err != nil {
			t.Fatalf("AdjustBalance() error = %v", err)
		}
		if tx != nil {
			t.Errorf("tx = %+v, want nil", tx)
		}
		if len(doc.Transactions) != 0 {
			t.Error("no transaction should be recorded")
		}
	})

	t.Run("negative target rejected", func(t *testing.T) {
		doc := core.DefaultDocument()
		if _, err := AdjustBalance(doc, testNow, core.Money{Cents: -1}); !errors.Is(err, core.ErrNegativeBalance) {
			t.Errorf("AdjustBalance() error = %v, want ErrNegativeBalance", err)
		}
	})
}

func TestRecent(t *testing.T) {
	doc := core.DefaultDocument()
	for i, desc := range []string{"first", "second", "third"} {
		if _, err := Append(doc, testNow.Add(time.Duration(i)*time.Hour), core.Entry, "Venda", core.Money{Cents: 100}, desc); err != nil {
			t.Fatal(err)
		}
	}

	got := Recent(doc, 2)
	if len(got) != 2 {
		t.Fatalf("Recent(2) = %d transactions, want 2", len(got))
	}
	if got[0].Description != "third" || got[1].Description != "second" {
		t.Errorf("Recent(2) order = %s, %s, want third, second", got[0].Description, got[1].Description)
	}

	if got := Recent(doc, 10); len(got) != 3 {
		t.Errorf("Recent(10) = %d, want all 3", len(got))
	}
	if got := Recent(doc, 0); got != nil {
		t.Errorf("Recent(0) = %v, want nil", got)
	}
}
