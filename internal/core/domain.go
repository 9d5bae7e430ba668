package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date layout used by Entry.Date.
const DateLayout = "2006-01-02"

const (
	Expense EntryType = "支出"
	Income  EntryType = "収入"
)

type (
	// EntryType is the closed income/expense enumeration.
	EntryType string

	// Amount is a quantity in the ledger's currency unit.
	Amount int64

	Entry struct {
		ID          string    `json:"id"`
		Date        string    `json:"date"` // YYYY-MM-DD
		Category    string    `json:"category"`
		SubCategory string    `json:"subCategory,omitempty"`
		Amount      Amount    `json:"amount"`
		Type        EntryType `json:"type"`
		Memo        string    `json:"memo,omitempty"`
	}

	// Category is one node of the two-level taxonomy.
	Category struct {
		Name string   `json:"name"`
		Sub  []string `json:"sub"`
	}
)

var (
	ErrInvalidEntry = errors.New("invalid entry")

	ErrMissingID       = fmt.Errorf("%w: missing id", ErrInvalidEntry)
	ErrMissingDate     = fmt.Errorf("%w: missing date", ErrInvalidEntry)
	ErrInvalidDate     = fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidEntry)
	ErrMissingCategory = fmt.Errorf("%w: missing category", ErrInvalidEntry)
	ErrInvalidAmount   = fmt.Errorf("%w: amount must be positive", ErrInvalidEntry)
	ErrInvalidType     = fmt.Errorf("%w: type must be 支出 or 収入", ErrInvalidEntry)
)

// Valid reports whether t is one of the two enumerated values.
func (t EntryType) Valid() bool {
	return t == Expense || t == Income
}

// English returns the stable English name of the type.
func (t EntryType) English() string {
	switch t {
	case Expense:
		return "expense"
	case Income:
		return "income"
	default:
		return string(t)
	}
}

// ParseEntryType accepts the stored strings as well as their English names.
func ParseEntryType(s string) (EntryType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(Expense), "expense", "out":
		return Expense, nil
	case string(Income), "income", "in":
		return Income, nil
	}
	return "", ErrInvalidType
}

func (a Amount) Validate() error {
	if a <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Validate checks the invariants every persisted entry must satisfy.
// The id is not checked: new entries get one from the remote store.
func (e Entry) Validate() error {
	date := strings.TrimSpace(e.Date)
	if date == "" {
		return ErrMissingDate
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return ErrInvalidDate
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrMissingCategory
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

// HasSub reports whether sub is listed under the category.
func (c Category) HasSub(sub string) bool {
	for _, s := range c.Sub {
		if s == sub {
			return true
		}
	}
	return false
}

// Clone returns a copy that does not share the sub slice.
func (c Category) Clone() Category {
	return Category{Name: c.Name, Sub: append([]string{}, c.Sub...)}
}
