package ledger

import (
	"testing"
	"time"

	"caixa/internal/core"
)

func monthRange(t time.Time) (time.Time, time.Time) {
	return MonthWindow(t)
}

func TestFilterByRange(t *testing.T) {
	doc := core.DefaultDocument()
	if _, err := Append(doc, testNow, core.Entry, "Venda", core.Money{Cents: 100}, "in range"); err != nil {
		t.Fatal(err)
	}
	if _, err := Append(doc, testNow.AddDate(0, -2, 0), core.Entry, "Venda", core.Money{Cents: 100}, "out of range"); err != nil {
		t.Fatal(err)
	}
	doc.Transactions = append(doc.Transactions, core.Transaction{
		ID: "broken", Direction: core.Exit, Category: "Compra",
		Amount: core.Money{Cents: 100}, Description: "no timestamp",
	})

	start, end := monthRange(testNow)
	filtered, skipped := FilterByRange(doc, start, end)

	if len(filtered) != 1 || filtered[0].Description != "in range" {
		t.Errorf("filtered = %v, want only the in-range transaction", filtered)
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}

	t.Run("boundaries inclusive", func(t *testing.T) {
		doc := core.DefaultDocument()
		if _, err := Append(doc, start, core.Entry, "Venda", core.Money{Cents: 100}, "at start"); err != nil {
			t.Fatal(err)
		}
		if _, err := Append(doc, end, core.Entry, "Venda", core.Money{Cents: 100}, "at end"); err != nil {
			t.Fatal(err)
		}
		filtered, _ := FilterByRange(doc, start, end)
		if len(filtered) != 2 {
			t.Errorf("filtered = %d, want both boundary transactions", len(filtered))
		}
	})
}

func TestFilterByRange_UnknownDirection(t *testing.T) {
	doc := core.DefaultDocument()
	if _, err := Append(doc, testNow, core.Entry, "Venda", core.Money{Cents: 5000}, "good"); err != nil {
		t.Fatal(err)
	}
	// A degraded stored payload can carry a direction value no current
	// build writes.
	doc.Transactions = append(doc.Transactions, core.Transaction{
		ID: "legacy", Direction: "entrada", Category: "Venda",
		Amount: core.Money{Cents: 7000}, Description: "legacy direction",
		Timestamp: testNow,
	})

	start, end := monthRange(testNow)
	filtered, skipped := FilterByRange(doc, start, end)
	if len(filtered) != 1 || filtered[0].ID == "legacy" {
		t.Errorf("filtered = %v, want only the valid transaction", filtered)
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}

	rep := Aggregate(doc, filtered, start, end, testNow)
	if rep.TotalEntries.Cents != 5000 {
		t.Errorf("TotalEntries = %d, want 5000", rep.TotalEntries.Cents)
	}
}

func TestAggregate_UnknownDirectionInSlice(t *testing.T) {
	doc := core.DefaultDocument()
	txs := []core.Transaction{
		{ID: "a", Direction: core.Exit, Category: "Compra",
			Amount: core.Money{Cents: 3000}, Timestamp: testNow},
		{ID: "b", Direction: "saida", Category: "Compra",
			Amount: core.Money{Cents: 9000}, Timestamp: testNow},
	}

	start, end := monthRange(testNow)
	rep := Aggregate(doc, txs, start, end, testNow)
	if rep.TotalExits.Cents != 3000 {
		t.Errorf("TotalExits = %d, want the unknown direction ignored", rep.TotalExits.Cents)
	}
}

func TestAggregate(t *testing.T) {
	doc := core.DefaultDocument()
	if _, err := Append(doc, testNow, core.Entry, "Salário", core.Money{Cents: 200000}, "pay"); err != nil {
		t.Fatal(err)
	}
	if _, err := Append(doc, testNow, core.Exit, "Alimentação", core.Money{Cents: 15000}, "groceries"); err != nil {
		t.Fatal(err)
	}

	start, end := monthRange(testNow)
	filtered, _ := FilterByRange(doc, start, end)
	rep := Aggregate(doc, filtered, start, end, testNow)

	if rep.TotalEntries.Cents != 200000 {
		t.Errorf("TotalEntries = %d, want 200000", rep.TotalEntries.Cents)
	}
	if rep.TotalExits.Cents != 15000 {
		t.Errorf("TotalExits = %d, want 15000", rep.TotalExits.Cents)
	}
	if rep.PeriodBalance.Cents != 185000 {
		t.Errorf("PeriodBalance = %d, want 185000", rep.PeriodBalance.Cents)
	}
	if rep.Count != 2 {
		t.Errorf("Count = %d, want 2", rep.Count)
	}

	exits := rep.ByCategory[core.Exit]
	if len(exits) != 1 || exits[0].Name != "Alimentação" || exits[0].Percent != 100 {
		t.Errorf("exit breakdown = %+v, want Alimentação at 100%%", exits)
	}
	entries := rep.ByCategory[core.Entry]
	if len(entries) != 1 || entries[0].Name != "Salário" || entries[0].Percent != 100 {
		t.Errorf("entry breakdown = %+v, want Salário at 100%%", entries)
	}
}

func TestAggregate_CategoryRanking(t *testing.T) {
	doc := core.DefaultDocument()
	for _, tc := range []struct {
		category string
		cents    int64
	}{
		{"Alimentação", 30000},
		{"Transporte", 10000},
		{"Compra", 60000},
	} {
		if _, err := Append(doc, testNow, core.Exit, tc.category, core.Money{Cents: tc.cents}, "x"); err != nil {
			t.Fatal(err)
		}
	}

	start, end := monthRange(testNow)
	filtered, _ := FilterByRange(doc, start, end)
	rep := Aggregate(doc, filtered, start, end, testNow)

	exits := rep.ByCategory[core.Exit]
	wantOrder := []string{"Compra", "Alimentação", "Transporte"}
	for i, want := range wantOrder {
		if exits[i].Name != want {
			t.Errorf("rank %d = %s, want %s", i, exits[i].Name, want)
		}
	}
	if exits[0].Percent != 60 || exits[1].Percent != 30 || exits[2].Percent != 10 {
		t.Errorf("percents = %v/%v/%v, want 60/30/10", exits[0].Percent, exits[1].Percent, exits[2].Percent)
	}

	var sum float64
	for _, ct := range exits {
		sum += ct.Percent
	}
	if sum != 100 {
		t.Errorf("percent sum = %v, want 100", sum)
	}
}

func TestAggregate_GoalAnnotations(t *testing.T) {
	start, end := monthRange(testNow)

	t.Run("present when range overlaps current month", func(t *testing.T) {
		doc := core.DefaultDocument()
		doc.Goals.MonthlySpendLimit = core.Money{Cents: 100000}
		if _, err := Append(doc, testNow, core.Exit, "Compra", core.Money{Cents: 25000}, "x"); err != nil {
			t.Fatal(err)
		}
		filtered, _ := FilterByRange(doc, start, end)
		rep := Aggregate(doc, filtered, start, end, testNow)

		if rep.Goal == nil {
			t.Fatal("Goal should be set for the current month")
		}
		if !rep.Goal.HasLimit || rep.Goal.SpendUsed != 25 {
			t.Errorf("Goal = %+v, want 25%% of the limit used", rep.Goal)
		}
	})

	t.Run("absent for past ranges", func(t *testing.T) {
		doc := core.DefaultDocument()
		doc.Goals.MonthlySpendLimit = core.Money{Cents: 100000}
		pastStart, pastEnd := monthRange(testNow.AddDate(0, -2, 0))
		filtered, _ := FilterByRange(doc, pastStart, pastEnd)
		rep := Aggregate(doc, filtered, pastStart, pastEnd, testNow)
		if rep.Goal != nil {
			t.Errorf("Goal = %+v, want nil for a past range", rep.Goal)
		}
	})

	t.Run("absent when no goals configured", func(t *testing.T) {
		doc := core.DefaultDocument()
		filtered, _ := FilterByRange(doc, start, end)
		rep := Aggregate(doc, filtered, start, end, testNow)
		if rep.Goal != nil {
			t.Errorf("Goal = %+v, want nil without configured goals", rep.Goal)
		}
	})
}

func TestAggregate_EmptyPeriod(t *testing.T) {
	doc := core.DefaultDocument()
	start, end := monthRange(testNow)
	rep := Aggregate(doc, nil, start, end, testNow)

	if rep.Count != 0 || rep.TotalEntries.Cents != 0 || rep.TotalExits.Cents != 0 {
		t.Errorf("empty report = %+v, want zeros", rep)
	}
	if len(rep.ByCategory[core.Entry]) != 0 || len(rep.ByCategory[core.Exit]) != 0 {
		t.Error("empty period should have empty breakdowns")
	}
}
