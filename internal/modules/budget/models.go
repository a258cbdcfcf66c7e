// Package budget keeps household income and expense entries, either private
// to a user or shared with one of their family groups, and summarizes them.
package budget

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Entry types
const (
	TypeIncome  = "income"
	TypeExpense = "expense"
)

// DateLayout is the calendar date format of Entry.Date
const DateLayout = "2006-01-02"

// Errors returned by the repository and service
var (
	ErrNotFound     = errors.New("entry not found")
	ErrInvalidEntry = errors.New("invalid entry")
	ErrForbidden    = errors.New("not allowed to change this entry")
	ErrNotMember    = errors.New("not a member of this group")
)

// Entry is a single household income or expense
type Entry struct {
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	GroupID     string    `json:"group_id,omitempty"`
	Type        string    `json:"type"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Date        string    `json:"date"` // YYYY-MM-DD
	Amount      float64   `json:"amount"`
}

// Validate normalizes and checks the entry's fields
func (e *Entry) Validate() error {
	e.Type = strings.ToLower(strings.TrimSpace(e.Type))
	e.Category = strings.TrimSpace(e.Category)
	e.Date = strings.TrimSpace(e.Date)

	if e.Type != TypeIncome && e.Type != TypeExpense {
		return fmt.Errorf("%w: type must be income or expense", ErrInvalidEntry)
	}
	if e.Category == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidEntry)
	}
	if e.Amount <= 0 || math.IsInf(e.Amount, 0) || math.IsNaN(e.Amount) {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidEntry)
	}
	if _, err := time.Parse(DateLayout, e.Date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidEntry)
	}
	return nil
}

// Filter narrows a listing. Empty fields match everything.
type Filter struct {
	From     string // Inclusive YYYY-MM-DD
	To       string // Inclusive YYYY-MM-DD
	GroupID  string
	Category string
	Type     string
}

// ImportResult reports a bulk import. Errors is keyed by the row's index.
type ImportResult struct {
	Errors   map[int]string `json:"errors"`
	Imported int            `json:"imported"`
	Skipped  int            `json:"skipped"`
}

// CategoryTotal is the expense total of one category
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
	Share    float64 `json:"share"` // Percent of all expenses
}

// PeriodTotal summarizes one budget month. Balance carries over from
// earlier periods.
type PeriodTotal struct {
	Period  string  `json:"period"` // YYYY-MM of the period's first day
	Start   string  `json:"start"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Net     float64 `json:"net"`
	Balance float64 `json:"balance"`
}

// Report summarizes a set of entries
type Report struct {
	ByCategory []CategoryTotal `json:"by_category"`
	Monthly    []PeriodTotal   `json:"monthly"`
	Income     float64         `json:"income"`
	Expense    float64         `json:"expense"`
	Balance    float64         `json:"balance"`
	Entries    int             `json:"entries"`
}
