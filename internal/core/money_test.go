package core

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantCents int64
		wantErr   bool
	}{
		{name: "integer", input: "150", wantCents: 15000},
		{name: "decimal point", input: "12.34", wantCents: 1234},
		{name: "decimal comma", input: "12,34", wantCents: 1234},
		{name: "single decimal digit", input: "5.5", wantCents: 550},
		{name: "third digit rounds up", input: "1.005", wantCents: 101},
		{name: "third digit rounds down", input: "1.004", wantCents: 100},
		{name: "leading dot", input: ".50", wantCents: 50},
		{name: "surrounding whitespace", input: "  20,00 ", wantCents: 2000},
		{name: "zero rejected", input: "0", wantErr: true},
		{name: "zero decimal rejected", input: "0.00", wantErr: true},
		{name: "negative rejected", input: "-5", wantErr: true},
		{name: "explicit plus rejected", input: "+5", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "letters", input: "abc", wantErr: true},
		{name: "mixed", input: "12a.50", wantErr: true},
		{name: "two separators", input: "1.2.3", wantErr: true},
		{name: "whitespace only", input: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAmount) {
					t.Errorf("ParseAmount(%q) error = %v, want ErrInvalidAmount", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) error = %v", tt.input, err)
			}
			if got.Cents != tt.wantCents {
				t.Errorf("ParseAmount(%q) = %d cents, want %d", tt.input, got.Cents, tt.wantCents)
			}
		})
	}
}

func TestParseBalance(t *testing.T) {
	t.Run("zero allowed", func(t *testing.T) {
		got, err := ParseBalance("0")
		if err != nil {
			t.Fatalf("ParseBalance(0) error = %v", err)
		}
		if got.Cents != 0 {
			t.Errorf("ParseBalance(0) = %d, want 0", got.Cents)
		}
	})

	t.Run("zero decimal allowed", func(t *testing.T) {
		got, err := ParseBalance("0,00")
		if err != nil {
			t.Fatalf("ParseBalance(0,00) error = %v", err)
		}
		if got.Cents != 0 {
			t.Errorf("ParseBalance(0,00) = %d, want 0", got.Cents)
		}
	})

	t.Run("negative still rejected", func(t *testing.T) {
		if _, err := ParseBalance("-1"); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("ParseBalance(-1) error = %v, want ErrInvalidAmount", err)
		}
	})
}

func TestMoney_Units(t *testing.T) {
	if got := (Money{Cents: 1234}).Units(); got != 12.34 {
		t.Errorf("Units() = %v, want 12.34", got)
	}
	if got := (Money{Cents: -50}).Units(); got != -0.5 {
		t.Errorf("Units() = %v, want -0.5", got)
	}
}
