package bookkeeping

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gosimple/slug"
	"github.com/uptrace/bun"
)

// SQLStore is the bun backed implementation of the bookkeeping persistence
// layer. All writes to transaction category/tags and all import upserts go
// through here so the storage invariants stay in one place.
type SQLStore struct {
	db *bun.DB
}

func NewSQLStore(db *bun.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) DB() *bun.DB {
	return s.db
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	models := []interface{}{
		(*Category)(nil),
		(*CashBook)(nil),
		(*Transaction)(nil),
		(*CategoryMatchRule)(nil),
	}

	for _, model := range models {
		_, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		if err != nil {
			return fmt.Errorf("error creating table for %T: %w", model, err)
		}
	}

	return nil
}

func (s *SQLStore) GetOrCreateCategory(ctx context.Context, name string) (*Category, error) {
	category := new(Category)

	err := s.db.NewSelect().Model(category).Where("name = ?", name).Scan(ctx)
	if err == nil {
		return category, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("error looking up category %q: %w", name, err)
	}

	category = &Category{Name: name}

	// upsert so two concurrent get-or-creates converge on the same row
	_, err = s.db.NewInsert().
		Model(category).
		On("CONFLICT (name) DO UPDATE").
		Set("name = EXCLUDED.name").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("error creating category %q: %w", name, err)
	}

	return category, nil
}

func (s *SQLStore) GetOrCreateCashBook(ctx context.Context, name string) (*CashBook, error) {
	cashBook := new(CashBook)

	err := s.db.NewSelect().Model(cashBook).Where("name = ?", name).Scan(ctx)
	if err == nil {
		return cashBook, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("error looking up cash book %q: %w", name, err)
	}

	cashBook = &CashBook{Name: name, Slug: slug.Make(name), Active: true}

	_, err = s.db.NewInsert().
		Model(cashBook).
		On("CONFLICT (name) DO UPDATE").
		Set("name = EXCLUDED.name").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("error creating cash book %q: %w", name, err)
	}

	return cashBook, nil
}

// MatchRules returns all category match rules with their categories loaded,
// ordered by ascending priority. Evaluation order is a correctness
// requirement: overlapping rules rely on first-match-wins.
func (s *SQLStore) MatchRules(ctx context.Context) ([]*CategoryMatchRule, error) {
	var rules []*CategoryMatchRule

	err := s.db.NewSelect().
		Model(&rules).
		Relation("Category").
		Order("priority ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("error loading category match rules: %w", err)
	}

	return rules, nil
}

// SaveMatchRule validates and inserts a rule. Invalid rules are rejected
// here, at write time, and never reach the matching engine.
func (s *SQLStore) SaveMatchRule(ctx context.Context, rule *CategoryMatchRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	_, err := s.db.NewInsert().Model(rule).Exec(ctx)
	if err != nil {
		return fmt.Errorf("error saving match rule %q: %w", rule.Pattern, err)
	}

	return nil
}

// InsertTransaction inserts a single transaction. A duplicate reference
// surfaces as a uniqueness violation, this is not an upsert.
func (s *SQLStore) InsertTransaction(ctx context.Context, tx *Transaction) error {
	_, err := s.db.NewInsert().Model(tx).Exec(ctx)
	if err != nil {
		return fmt.Errorf("error inserting transaction %s: %w", tx.Reference, err)
	}

	return nil
}

// UpsertTransactions bulk inserts transactions with conflict resolution on
// the unique reference: an existing reference only gets its description and
// amount refreshed, category/tags/notes set after the first import are left
// alone. This single statement is what makes re-imports idempotent.
func (s *SQLStore) UpsertTransactions(ctx context.Context, txs []*Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	_, err := s.db.NewInsert().
		Model(&txs).
		On("CONFLICT (reference) DO UPDATE").
		Set("description = EXCLUDED.description").
		Set("amount = EXCLUDED.amount").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("error writing transactions to sql: %w", err)
	}

	return nil
}

// UpdateTransaction persists category and tag changes made by the rule
// matcher or the donation fallback.
func (s *SQLStore) UpdateTransaction(ctx context.Context, tx *Transaction) error {
	tx.UpdatedAt = time.Now()

	_, err := s.db.NewUpdate().
		Model(tx).
		Column("category_id", "tags", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("error updating transaction %s: %w", tx.Reference, err)
	}

	return nil
}

// UncategorizedTransactions returns transactions with no category or still
// in the named uncategorized bucket, in the default date then description
// order.
func (s *SQLStore) UncategorizedTransactions(ctx context.Context, uncategorizedName string) ([]*Transaction, error) {
	var txs []*Transaction

	err := s.db.NewSelect().
		Model(&txs).
		Relation("Category").
		Join("LEFT JOIN categories AS c ON c.id = t.category_id").
		Where("t.category_id IS NULL OR c.name = ?", uncategorizedName).
		Order("date ASC", "description ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("error loading uncategorized transactions: %w", err)
	}

	return txs, nil
}
