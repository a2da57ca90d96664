package bookkeeping

import (
	"errors"
	"fmt"

	"github.com/bcaldwell/bookops/pkg/patternmatch"
)

// ErrUnsavedTransactionTags is returned when a tag-bearing rule is applied to
// a transaction that has not been persisted yet. Tags need a stable
// transaction identity, so callers must save the transaction first.
var ErrUnsavedTransactionTags = errors.New("transaction must be saved before tags can be added to it")

// Apply evaluates the rule against tx and, on match, sets the rule's category
// and unions the rule's tags onto the transaction. tx is only mutated when
// the rule applies; persisting the change is the caller's job.
//
// The rule applies when both checks hold:
//   - Pattern matches the description starting at the first character,
//     case-insensitively.
//   - Value, when present, satisfies `amount <fn> value`. A present value
//     always activates the comparison, including 0.00; only a nil value
//     means "no amount check".
func (r *CategoryMatchRule) Apply(tx *Transaction) (bool, error) {
	if len(r.TagList()) > 0 && !tx.Saved() {
		return false, ErrUnsavedTransactionTags
	}

	patternMatched, err := patternmatch.MatchesStart(r.Pattern, tx.Description)
	if err != nil {
		return false, fmt.Errorf("rule with priority %d has an invalid pattern: %w", r.Priority, err)
	}

	valueMatched := true
	if r.Value != nil {
		cmp := tx.Amount.Cmp(*r.Value)

		switch r.ComparisonFunction {
		case CompareEqual:
			valueMatched = cmp == 0
		case CompareNotEqual:
			valueMatched = cmp != 0
		case CompareLessOrEqual:
			valueMatched = cmp <= 0
		case CompareGreaterOrEqual:
			valueMatched = cmp >= 0
		default:
			return false, fmt.Errorf("rule with priority %d has an invalid comparison function %q", r.Priority, r.ComparisonFunction)
		}
	}

	if !patternMatched || !valueMatched {
		return false, nil
	}

	if r.Category != nil {
		tx.SetCategory(r.Category)
	} else {
		categoryID := r.CategoryID
		tx.CategoryID = &categoryID
		tx.Category = nil
	}

	tx.AddTags(r.TagList()...)

	return true, nil
}
