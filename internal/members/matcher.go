package members

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"k8s.io/klog"

	"github.com/bcaldwell/bookops/internal/bookkeeping"
	"github.com/bcaldwell/bookops/pkg/patternmatch"
)

// MatchStore is the persistence surface the fee matcher needs.
type MatchStore interface {
	MatchRules(ctx context.Context, membershipID int64) ([]*FeeMatchRule, error)
	FeeCandidates(ctx context.Context, amount decimal.Decimal, categoryName string, floor time.Time) ([]*bookkeeping.Transaction, error)
	FeesByStatus(ctx context.Context, status FeeStatus) ([]*ReceivableFee, error)
	UpdateFeePayment(ctx context.Context, fee *ReceivableFee) error
}

// Matcher pairs receivable fees with the bank transactions that settled
// them. Candidate transactions are restricted to the membership fee category
// and to dates on or after both the membership start and the cutover date,
// the date fees started being generated automatically.
type Matcher struct {
	store        MatchStore
	categoryName string
	cutoverDate  time.Time
}

func NewMatcher(store MatchStore, categoryName string, cutoverDate time.Time) *Matcher {
	return &Matcher{
		store:        store,
		categoryName: categoryName,
		cutoverDate:  cutoverDate,
	}
}

// FindMatch returns the transaction that settles the fee, or nil when
// nothing qualifies. Nil is a normal outcome, the fee stays in its current
// status for the next pass.
//
// The membership's match rules are tried in creation order and the first
// rule that yields a transaction wins. Within a rule the oldest qualifying
// transaction is picked, so a later identical payment never shadows an
// earlier one. A transaction already bound to another fee is never returned.
func (m *Matcher) FindMatch(ctx context.Context, fee *ReceivableFee, membership *Membership) (*bookkeeping.Transaction, error) {
	rules, err := m.store.MatchRules(ctx, membership.ID)
	if err != nil {
		return nil, err
	}

	floor := membership.StartDate
	if m.cutoverDate.After(floor) {
		floor = m.cutoverDate
	}

	for _, rule := range rules {
		candidates, err := m.store.FeeCandidates(ctx, fee.Amount, m.categoryName, floor)
		if err != nil {
			return nil, err
		}

		for _, transaction := range candidates {
			matched, err := patternmatch.MatchesStart(rule.Pattern, transaction.Description)
			if err != nil {
				return nil, err
			}

			if matched {
				return transaction, nil
			}
		}
	}

	return nil, nil
}

// MatchFees runs one reconciliation pass over DUE then UNPAID fees and
// returns how many were settled. Fees are processed independently, a failure
// on one is logged and does not abort the pass.
func (m *Matcher) MatchFees(ctx context.Context) (int, error) {
	matched := 0

	for _, status := range []FeeStatus{FeeStatusDue, FeeStatusUnpaid} {
		fees, err := m.store.FeesByStatus(ctx, status)
		if err != nil {
			return matched, err
		}

		for _, fee := range fees {
			if fee.Membership == nil {
				klog.Errorf("receivable fee %d has no membership loaded, skipping", fee.ID)
				continue
			}

			transaction, err := m.FindMatch(ctx, fee, fee.Membership)
			if err != nil {
				klog.Errorf("failed to match receivable fee %d: %v", fee.ID, err)
				continue
			}

			if transaction == nil {
				continue
			}

			if err := fee.PaidWith(transaction); err != nil {
				klog.Errorf("failed to settle receivable fee %d: %v", fee.ID, err)
				continue
			}

			if err := m.store.UpdateFeePayment(ctx, fee); err != nil {
				klog.Errorf("failed to persist payment of receivable fee %d: %v", fee.ID, err)
				continue
			}

			matched++
		}
	}

	return matched, nil
}
