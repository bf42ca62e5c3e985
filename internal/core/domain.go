package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Entry Direction = "entry"
	Exit  Direction = "exit"
)

const (
	// FallbackCategory is always present in both registries and can never
	// be renamed or removed. Transactions of a removed category are
	// reassigned to it.
	FallbackCategory = "Other"

	// AdjustmentCategory is used for synthetic transactions created by
	// manual balance adjustments. It does not live in the registries.
	AdjustmentCategory = "Ajuste Manual"

	// AdjustmentDescription is the fixed description of synthetic
	// adjustment transactions.
	AdjustmentDescription = "Manual balance adjustment"
)

// DateLayout is the calendar-day format used for closing dates.
const DateLayout = time.DateOnly

type (
	// Direction tells whether a transaction moves cash in or out.
	Direction string

	Money struct {
		Cents int64 `json:"cents"`
	}

	// Transaction is immutable once created, except for Category which is
	// rewritten in bulk when its category is renamed or removed.
	Transaction struct {
		ID          string    `json:"id"`
		Direction   Direction `json:"direction"`
		Category    string    `json:"category"`
		Amount      Money     `json:"amount"`
		Description string    `json:"description"`
		Timestamp   time.Time `json:"timestamp"`
	}

	// Goals holds the monthly targets; zero means disabled.
	Goals struct {
		MonthlySavingsTarget Money `json:"monthly_savings_target"`
		MonthlySpendLimit    Money `json:"monthly_spend_limit"`
	}

	Notifications struct {
		LimitAlertEnabled    bool `json:"limit_alert_enabled"`
		DailyReminderEnabled bool `json:"daily_reminder_enabled"`
	}

	// ClosingRecord is a daily reconciliation snapshot. Append-only.
	ClosingRecord struct {
		Date           string `json:"date"` // DateLayout
		OpeningBalance Money  `json:"opening_balance"`
		ClosingBalance Money  `json:"closing_balance"`
		TotalEntries   Money  `json:"total_entries"`
		TotalExits     Money  `json:"total_exits"`
	}

	// LedgerDocument is the per-user aggregate root. Balance is derived
	// from the transactions and must equal the signed sum over them.
	LedgerDocument struct {
		SchemaVersion   int             `json:"schema_version"`
		Transactions    []Transaction   `json:"transactions"`
		CategoriesEntry []string        `json:"categories_entry"`
		CategoriesExit  []string        `json:"categories_exit"`
		Balance         Money           `json:"balance"`
		Goals           Goals           `json:"goals"`
		Notifications   Notifications   `json:"notifications"`
		LastClosingDate string          `json:"last_closing_date,omitempty"` // DateLayout, empty if never closed
		Closings        []ClosingRecord `json:"closings"`
	}
)

// SchemaVersion of documents written by this build.
const SchemaVersion = 1

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyDescription    = errors.New("empty description")
	ErrInvalidCategoryName = errors.New("invalid category name")
	ErrDuplicateCategory   = errors.New("duplicate category")
	ErrCategoryNotFound    = errors.New("category not found")
	ErrProtectedCategory   = errors.New("protected category")
	ErrUnknownCategory     = errors.New("unknown category")
	ErrNegativeBalance     = errors.New("negative balance")
	ErrUnknownDirection    = errors.New("unknown direction")
)

// DefaultDocument returns a fresh ledger for a new user.
func DefaultDocument() *LedgerDocument {
	return &LedgerDocument{
		SchemaVersion:   SchemaVersion,
		Transactions:    []Transaction{},
		CategoriesEntry: []string{"Venda", "Investimento", "Salário", FallbackCategory},
		CategoriesExit:  []string{"Mercadoria", "Pagamento", "Compra", "Alimentação", "Transporte", FallbackCategory},
		Notifications: Notifications{
			LimitAlertEnabled:    true,
			DailyReminderEnabled: false,
		},
		Closings: []ClosingRecord{},
	}
}

func (d Direction) Valid() bool {
	return d == Entry || d == Exit
}

// Signed returns the amount with the sign implied by the direction.
func (t Transaction) Signed() int64 {
	if t.Direction == Exit {
		return -t.Amount.Cents
	}
	return t.Amount.Cents
}

func (t Transaction) Validate() error {
	if !t.Direction.Valid() {
		return ErrUnknownDirection
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrInvalidCategoryName
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Categories returns the registry slice for the direction. The returned
// slice aliases the document; callers must not mutate it.
func (doc *LedgerDocument) Categories(dir Direction) []string {
	if dir == Exit {
		return doc.CategoriesExit
	}
	return doc.CategoriesEntry
}

func (doc *LedgerDocument) setCategories(dir Direction, names []string) {
	if dir == Exit {
		doc.CategoriesExit = names
		return
	}
	doc.CategoriesEntry = names
}

// ReplaceCategories swaps the full registry for a direction. Used by the
// registry operations; the fallback category must stay present.
func (doc *LedgerDocument) ReplaceCategories(dir Direction, names []string) {
	doc.setCategories(dir, names)
}

// HasCategory reports whether name is registered for the direction,
// matched case-sensitively.
func (doc *LedgerDocument) HasCategory(dir Direction, name string) bool {
	for _, c := range doc.Categories(dir) {
		if c == name {
			return true
		}
	}
	return false
}
