package bookkeeping

import (
	"context"

	"github.com/shopspring/decimal"
	"k8s.io/klog"
)

// Store is the persistence surface the categorizer needs.
type Store interface {
	// MatchRules returns all category match rules ordered by ascending priority.
	MatchRules(ctx context.Context) ([]*CategoryMatchRule, error)
	GetOrCreateCategory(ctx context.Context, name string) (*Category, error)
	// UpdateTransaction persists the transaction's category and tags.
	UpdateTransaction(ctx context.Context, tx *Transaction) error
}

// Categorizer assigns categories to transactions with a first-match-wins
// decision list of rules, falling back to the donation category for small
// positive amounts no rule claimed.
type Categorizer struct {
	store             Store
	donationCategory  string
	donationThreshold decimal.Decimal
}

func NewCategorizer(store Store, donationCategory string, donationThreshold decimal.Decimal) *Categorizer {
	return &Categorizer{
		store:             store,
		donationCategory:  donationCategory,
		donationThreshold: donationThreshold,
	}
}

// Categorize runs the rules against tx in priority order and persists the
// first applied rule's outcome. A nil rules slice loads the full rule set
// from the store; batch callers should load rules once and pass them in.
//
// When no rule applies and 0 <= amount <= donation threshold the transaction
// is filed under the donation category. Otherwise it is left untouched.
func (c *Categorizer) Categorize(ctx context.Context, tx *Transaction, rules []*CategoryMatchRule) error {
	if rules == nil {
		var err error

		rules, err = c.store.MatchRules(ctx)
		if err != nil {
			return err
		}
	}

	for _, rule := range rules {
		applied, err := rule.Apply(tx)
		if err != nil {
			return err
		}

		if applied {
			return c.store.UpdateTransaction(ctx, tx)
		}
	}

	if tx.Amount.Sign() >= 0 && tx.Amount.Cmp(c.donationThreshold) <= 0 {
		donation, err := c.store.GetOrCreateCategory(ctx, c.donationCategory)
		if err != nil {
			return err
		}

		tx.SetCategory(donation)

		return c.store.UpdateTransaction(ctx, tx)
	}

	return nil
}

// CategorizeBatch categorizes each transaction independently, loading the
// rule set once for the whole batch. A failing transaction is logged and
// skipped, it does not abort the batch. Returns how many transactions ended
// up with a category assigned by this pass.
func (c *Categorizer) CategorizeBatch(ctx context.Context, txs []*Transaction) (int, error) {
	rules, err := c.store.MatchRules(ctx)
	if err != nil {
		return 0, err
	}

	// rules must be non-nil so Categorize does not reload per transaction
	if rules == nil {
		rules = []*CategoryMatchRule{}
	}

	categorized := 0

	for _, tx := range txs {
		before := tx.CategoryID

		if err := c.Categorize(ctx, tx, rules); err != nil {
			klog.Errorf("failed to categorize transaction %s: %v", tx.Reference, err)
			continue
		}

		// imports pre-file transactions under the uncategorized bucket, so
		// count category changes, not just nil-to-set
		if tx.CategoryID != nil && (before == nil || *before != *tx.CategoryID) {
			categorized++
		}
	}

	return categorized, nil
}
