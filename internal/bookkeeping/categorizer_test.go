package bookkeeping

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	rules      []*CategoryMatchRule
	categories map[string]*Category
	nextID     int64
	updated    []*Transaction
}

func newFakeStore(rules ...*CategoryMatchRule) *fakeStore {
	return &fakeStore{
		rules:      rules,
		categories: map[string]*Category{},
		nextID:     100,
	}
}

func (f *fakeStore) MatchRules(ctx context.Context) ([]*CategoryMatchRule, error) {
	return f.rules, nil
}

func (f *fakeStore) GetOrCreateCategory(ctx context.Context, name string) (*Category, error) {
	if category, ok := f.categories[name]; ok {
		return category, nil
	}

	f.nextID++
	category := &Category{ID: f.nextID, Name: name}
	f.categories[name] = category

	return category, nil
}

func (f *fakeStore) UpdateTransaction(ctx context.Context, tx *Transaction) error {
	f.updated = append(f.updated, tx)
	return nil
}

func rule(priority int, pattern string, category *Category, tags string) *CategoryMatchRule {
	return &CategoryMatchRule{
		Priority:   priority,
		Pattern:    pattern,
		CategoryID: category.ID,
		Category:   category,
		Tags:       tags,
	}
}

func TestCategorizeFirstMatchWins(t *testing.T) {
	services := &Category{ID: 1, Name: CategoryServices}
	fees := &Category{ID: 2, Name: CategoryBankFees}

	// both rules match the description, only the lower priority one applies
	store := newFakeStore(
		rule(10, "TARIFA", fees, "banco"),
		rule(20, "TARIFA BANCARIA", services, "servico"),
	)
	categorizer := NewCategorizer(store, "Doação", decimal.NewFromInt(50))

	tx := savedTransaction("TARIFA BANCARIA Max Empresarial 1", "-85")
	require.NoError(t, categorizer.Categorize(context.Background(), tx, nil))

	require.NotNil(t, tx.CategoryID)
	assert.Equal(t, fees.ID, *tx.CategoryID)
	assert.Equal(t, []string{"banco"}, tx.Tags)
	assert.NotContains(t, tx.Tags, "servico")
	assert.Len(t, store.updated, 1)
}

func TestCategorizePriorityOrderIsDeterministic(t *testing.T) {
	services := &Category{ID: 1, Name: CategoryServices}
	fees := &Category{ID: 2, Name: CategoryBankFees}
	unrelated := &Category{ID: 3, Name: CategoryTaxes}

	matching := []*CategoryMatchRule{
		rule(5, "TARIFA", fees, ""),
		rule(15, "TARIFA", services, ""),
	}

	// unrelated rules shuffle priorities without reordering the matching ones
	for _, extra := range [][]*CategoryMatchRule{
		{rule(1, "ALUGUEL", unrelated, "")},
		{rule(7, "ALUGUEL", unrelated, ""), rule(30, "IMPOSTO", unrelated, "")},
	} {
		rules := append(append([]*CategoryMatchRule{}, extra...), matching...)
		store := newFakeStore()
		categorizer := NewCategorizer(store, "Doação", decimal.NewFromInt(50))

		tx := savedTransaction("TARIFA BANCARIA", "-20")
		require.NoError(t, categorizer.Categorize(context.Background(), tx, rules))

		require.NotNil(t, tx.CategoryID)
		assert.Equal(t, fees.ID, *tx.CategoryID)
	}
}

func TestCategorizeDonationFallbackBoundaries(t *testing.T) {
	tests := []struct {
		amount   string
		donation bool
	}{
		{"0.00", true},
		{"25.00", true},
		{"50.00", true},
		{"50.01", false},
		{"-0.01", false},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			store := newFakeStore()
			categorizer := NewCategorizer(store, "Doação", decimal.RequireFromString("50.00"))

			tx := savedTransaction("PIX RECEBIDO", tt.amount)
			require.NoError(t, categorizer.Categorize(context.Background(), tx, nil))

			if tt.donation {
				require.NotNil(t, tx.Category)
				assert.Equal(t, "Doação", tx.Category.Name)
				assert.Len(t, store.updated, 1)
			} else {
				assert.Nil(t, tx.CategoryID)
				assert.Empty(t, store.updated)
			}
		})
	}
}

func TestCategorizeNoRuleNoFallbackLeavesCategory(t *testing.T) {
	store := newFakeStore()
	categorizer := NewCategorizer(store, "Doação", decimal.NewFromInt(50))

	// negative amount outside the donation window keeps its category
	existing := int64(42)
	tx := savedTransaction("SAQUE", "-300")
	tx.CategoryID = &existing

	require.NoError(t, categorizer.Categorize(context.Background(), tx, nil))
	assert.Equal(t, existing, *tx.CategoryID)
	assert.Empty(t, store.updated)
}

func TestCategorizeBatchLoadsRulesOnceAndCounts(t *testing.T) {
	fees := &Category{ID: 2, Name: CategoryBankFees}
	store := newFakeStore(rule(10, "TARIFA", fees, ""))
	categorizer := NewCategorizer(store, "Doação", decimal.NewFromInt(50))

	txs := []*Transaction{
		savedTransaction("TARIFA BANCARIA", "-10"),
		savedTransaction("SAQUE GRANDE", "-900"),
		savedTransaction("PIX RECEBIDO", "30"),
	}

	categorized, err := categorizer.CategorizeBatch(context.Background(), txs)
	require.NoError(t, err)

	// rule match + donation fallback, the large withdrawal stays untouched
	assert.Equal(t, 2, categorized)
	assert.Nil(t, txs[1].CategoryID)
}

func TestCategorizeBatchSkipsFailingTransaction(t *testing.T) {
	fees := &Category{ID: 2, Name: CategoryBankFees}
	store := newFakeStore(rule(10, "TARIFA", fees, "banco"))
	categorizer := NewCategorizer(store, "Doação", decimal.NewFromInt(50))

	// first transaction is unsaved so the tag precondition fails, the rest
	// of the batch still runs
	txs := []*Transaction{
		{Description: "TARIFA BANCARIA", Amount: decimal.RequireFromString("-10")},
		savedTransaction("TARIFA BANCARIA", "-10"),
	}

	categorized, err := categorizer.CategorizeBatch(context.Background(), txs)
	require.NoError(t, err)
	assert.Equal(t, 1, categorized)
	assert.Nil(t, txs[0].CategoryID)
	require.NotNil(t, txs[1].CategoryID)
}
