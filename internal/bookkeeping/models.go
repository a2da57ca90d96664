// Package bookkeeping holds the transaction ledger: cash books, categories,
// transactions and the ordered category match rules used to classify imported
// bank transactions.
package bookkeeping

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type Category struct {
	bun.BaseModel `bun:"table:categories,alias:c"`

	ID   int64  `bun:",pk,autoincrement"`
	Name string `bun:",unique,notnull"`
}

type CashBook struct {
	bun.BaseModel `bun:"table:cash_books,alias:cb"`

	ID          int64  `bun:",pk,autoincrement"`
	Name        string `bun:",unique,notnull"`
	Slug        string `bun:",unique,notnull"`
	Description string `bun:"type:text"`
	Active      bool   `bun:",default:true"`
}

type Transaction struct {
	bun.BaseModel `bun:"table:transactions,alias:t"`

	ID int64 `bun:",pk,autoincrement"`

	// Reference is the external transaction identifier and the sole
	// deduplication key for imports.
	Reference   string          `bun:",unique,notnull"`
	Date        time.Time       `bun:"type:date,notnull"`
	Description string          `bun:",notnull"`
	Amount      decimal.Decimal `bun:"type:numeric(10,2),notnull"`
	Notes       string          `bun:"type:text"`
	Tags        []string        `bun:",array"`

	CashBookID *int64    `bun:",nullzero"`
	CashBook   *CashBook `bun:"rel:belongs-to,join:cash_book_id=id"`
	CategoryID *int64    `bun:",nullzero"`
	Category   *Category `bun:"rel:belongs-to,join:category_id=id"`

	CreatedBy string

	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// Saved reports whether the transaction has a stable database identity.
func (t *Transaction) Saved() bool {
	return t.ID != 0
}

func (t *Transaction) SetCategory(category *Category) {
	t.Category = category
	t.CategoryID = &category.ID
}

// AddTags unions tags into the transaction's tag set, preserving existing
// tags and their order.
func (t *Transaction) AddTags(tags ...string) {
	existing := make(map[string]bool, len(t.Tags))
	for _, tag := range t.Tags {
		existing[tag] = true
	}

	for _, tag := range tags {
		if existing[tag] {
			continue
		}

		t.Tags = append(t.Tags, tag)
		existing[tag] = true
	}
}

type ComparisonFunction string

const (
	CompareEqual          ComparisonFunction = "EQ"
	CompareNotEqual       ComparisonFunction = "NEQ"
	CompareLessOrEqual    ComparisonFunction = "LTE"
	CompareGreaterOrEqual ComparisonFunction = "GTE"
)

func (f ComparisonFunction) IsValid() bool {
	switch f {
	case CompareEqual, CompareNotEqual, CompareLessOrEqual, CompareGreaterOrEqual:
		return true
	}

	return false
}

// CategoryMatchRule categorizes transactions whose description matches
// Pattern (case-insensitive, anchored at the start of the description) and,
// when Value is set, whose amount satisfies the comparison function. Rules
// are evaluated in ascending Priority order and the first match wins, so
// specific rules must sort before general ones.
type CategoryMatchRule struct {
	bun.BaseModel `bun:"table:category_match_rules,alias:cmr"`

	ID       int64  `bun:",pk,autoincrement"`
	Priority int    `bun:",unique,notnull"`
	Pattern  string `bun:",notnull"`

	CategoryID int64     `bun:",notnull"`
	Category   *Category `bun:"rel:belongs-to,join:category_id=id"`

	Value              *decimal.Decimal   `bun:"type:numeric(10,2)"`
	ComparisonFunction ComparisonFunction `bun:",nullzero"`

	// Comma separated labels added to matched transactions
	Tags string
}

// Validate enforces the write time invariants: value and comparison function
// are either both present or both absent, and the comparison function is one
// of the known four.
func (r *CategoryMatchRule) Validate() error {
	hasValue := r.Value != nil
	hasComparison := r.ComparisonFunction != ""

	if hasValue != hasComparison {
		return fmt.Errorf("rule %q: value and comparison function are required together", r.Pattern)
	}

	if hasComparison && !r.ComparisonFunction.IsValid() {
		return fmt.Errorf("rule %q: invalid comparison function %q", r.Pattern, r.ComparisonFunction)
	}

	return nil
}

// TagList splits the rule's tags into individual labels.
func (r *CategoryMatchRule) TagList() []string {
	if r.Tags == "" {
		return nil
	}

	parts := strings.Split(r.Tags, ",")
	tags := make([]string, 0, len(parts))

	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}

	return tags
}
