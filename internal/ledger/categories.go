package ledger

import (
	"strings"
	"unicode/utf8"

	"caixa/internal/core"
)

// RemoveResult reports the outcome of a category removal attempt.
type RemoveResult struct {
	// ConfirmationRequired is set when the category is in use and the
	// caller did not confirm; no mutation was performed.
	ConfirmationRequired bool
	// UsageCount is how many transactions use (or used) the category.
	UsageCount int
	// Reassigned is how many transactions were rewritten to the fallback
	// category. Zero unless the removal actually ran.
	Reassigned int
}

// AddCategory appends name to the registry for dir. Names must have at
// least two characters; exact duplicates are rejected.
func AddCategory(doc *core.LedgerDocument, dir core.Direction, name string) error {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < 2 {
		return core.ErrInvalidCategoryName
	}
	if doc.HasCategory(dir, name) {
		return core.ErrDuplicateCategory
	}
	doc.ReplaceCategories(dir, append(doc.Categories(dir), name))
	return nil
}

// RenameCategory renames oldName to newName in the registry, preserving
// its position, and rewrites the category of every transaction that used
// oldName. Returns the number of transactions touched.
func RenameCategory(doc *core.LedgerDocument, dir core.Direction, oldName, newName string) (int, error) {
	newName = strings.TrimSpace(newName)
	if oldName == core.FallbackCategory {
		return 0, core.ErrProtectedCategory
	}
	if utf8.RuneCountInString(newName) < 2 {
		return 0, core.ErrInvalidCategoryName
	}
	if !doc.HasCategory(dir, oldName) {
		return 0, core.ErrCategoryNotFound
	}
	if doc.HasCategory(dir, newName) {
		return 0, core.ErrDuplicateCategory
	}

	names := doc.Categories(dir)
	for i, c := range names {
		if c == oldName {
			names[i] = newName
			break
		}
	}

	touched := 0
	for i := range doc.Transactions {
		if doc.Transactions[i].Category == oldName {
			doc.Transactions[i].Category = newName
			touched++
		}
	}
	return touched, nil
}

// CategoryUsage counts transactions currently using name.
func CategoryUsage(doc *core.LedgerDocument, name string) int {
	n := 0
	for i := range doc.Transactions {
		if doc.Transactions[i].Category == name {
			n++
		}
	}
	return n
}

// RemoveCategory removes name from the registry for dir. If transactions
// use the category and confirmed is false, it performs no mutation and
// returns ConfirmationRequired with the usage count. With confirmation,
// the transactions are reassigned to the fallback category first. The
// fallback category and the last remaining category are protected.
func RemoveCategory(doc *core.LedgerDocument, dir core.Direction, name string, confirmed bool) (RemoveResult, error) {
	if name == core.FallbackCategory {
		return RemoveResult{}, core.ErrProtectedCategory
	}
	if !doc.HasCategory(dir, name) {
		return RemoveResult{}, core.ErrCategoryNotFound
	}
	if len(doc.Categories(dir)) <= 1 {
		return RemoveResult{}, core.ErrProtectedCategory
	}

	usage := CategoryUsage(doc, name)
	if usage > 0 && !confirmed {
		return RemoveResult{ConfirmationRequired: true, UsageCount: usage}, nil
	}

	reassigned := 0
	for i := range doc.Transactions {
		if doc.Transactions[i].Category == name {
			doc.Transactions[i].Category = core.FallbackCategory
			reassigned++
		}
	}

	names := doc.Categories(dir)
	kept := make([]string, 0, len(names)-1)
	for _, c := range names {
		if c != name {
			kept = append(kept, c)
		}
	}
	doc.ReplaceCategories(dir, kept)
	return RemoveResult{UsageCount: usage, Reassigned: reassigned}, nil
}
