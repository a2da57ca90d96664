package members

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/bcaldwell/bookops/internal/bookkeeping"
	"github.com/bcaldwell/bookops/pkg/patternmatch"
)

// SQLStore persists members, memberships and their receivable fees.
type SQLStore struct {
	db *bun.DB
}

func NewSQLStore(db *bun.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	models := []interface{}{
		(*Member)(nil),
		(*Membership)(nil),
		(*ReceivableFee)(nil),
		(*FeeMatchRule)(nil),
	}

	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create members table: %w", err)
		}
	}

	return nil
}

func (s *SQLStore) ActiveMemberships(ctx context.Context) ([]*Membership, error) {
	var memberships []*Membership

	err := s.db.NewSelect().
		Model(&memberships).
		Relation("Member").
		Where("ms.active").
		Order("ms.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active memberships: %w", err)
	}

	return memberships, nil
}

// MatchRules returns the membership's fee match rules in creation order,
// which is the order the matcher must evaluate them in.
func (s *SQLStore) MatchRules(ctx context.Context, membershipID int64) ([]*FeeMatchRule, error) {
	var rules []*FeeMatchRule

	err := s.db.NewSelect().
		Model(&rules).
		Where("membership_id = ?", membershipID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load fee match rules: %w", err)
	}

	return rules, nil
}

func (s *SQLStore) FeesByStatus(ctx context.Context, status FeeStatus) ([]*ReceivableFee, error) {
	var fees []*ReceivableFee

	err := s.db.NewSelect().
		Model(&fees).
		Relation("Membership").
		Where("rf.status = ?", status).
		Order("rf.due_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s receivable fees: %w", status, err)
	}

	return fees, nil
}

// FeeCandidates returns the transactions that could settle a fee of the
// given amount: in the membership fee category, dated on or after floor and
// not yet bound to any receivable fee, oldest first. Pattern filtering
// happens in the matcher, not here.
func (s *SQLStore) FeeCandidates(ctx context.Context, amount decimal.Decimal, categoryName string, floor time.Time) ([]*bookkeeping.Transaction, error) {
	var transactions []*bookkeeping.Transaction

	err := s.db.NewSelect().
		Model(&transactions).
		Join("JOIN categories AS c ON c.id = t.category_id").
		Where("c.name = ?", categoryName).
		Where("t.amount = ?", amount).
		Where("t.date >= ?", floor).
		Where("NOT EXISTS (SELECT 1 FROM receivable_fees AS rf WHERE rf.transaction_id = t.id)").
		Order("t.date ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load fee candidate transactions: %w", err)
	}

	return transactions, nil
}

func (s *SQLStore) SaveMatchRule(ctx context.Context, rule *FeeMatchRule) error {
	if _, err := patternmatch.Compile(rule.Pattern); err != nil {
		return fmt.Errorf("invalid fee match rule pattern %q: %w", rule.Pattern, err)
	}

	if _, err := s.db.NewInsert().Model(rule).Exec(ctx); err != nil {
		return fmt.Errorf("failed to save fee match rule: %w", err)
	}

	return nil
}

// UpdateFeePayment persists a PaidWith transition.
func (s *SQLStore) UpdateFeePayment(ctx context.Context, fee *ReceivableFee) error {
	_, err := s.db.NewUpdate().
		Model(fee).
		Column("status", "transaction_id").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update receivable fee %d: %w", fee.ID, err)
	}

	return nil
}

// CreateFeesForNextPeriod inserts one receivable fee per active membership
// for its next billing period. The unique (membership, start date) pair
// makes the run idempotent, fees already created are left untouched.
func (s *SQLStore) CreateFeesForNextPeriod(ctx context.Context, today time.Time, dueDays int) (int, error) {
	memberships, err := s.ActiveMemberships(ctx)
	if err != nil {
		return 0, err
	}

	fees := make([]*ReceivableFee, 0, len(memberships))

	for _, membership := range memberships {
		start := nextPeriodStart(membership.StartDate, membership.Interval, today)

		if membership.EndDate != nil && start.After(*membership.EndDate) {
			continue
		}

		fees = append(fees, &ReceivableFee{
			MembershipID: membership.ID,
			StartDate:    start,
			DueDate:      start.AddDate(0, 0, dueDays),
			Amount:       membership.Amount,
			Status:       FeeStatusUnpaid,
		})
	}

	if len(fees) == 0 {
		return 0, nil
	}

	result, err := s.db.NewInsert().
		Model(&fees).
		On("CONFLICT (membership_id, start_date) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to create receivable fees: %w", err)
	}

	created, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(created), nil
}

// MarkDueFees flips unpaid fees whose due date has passed to DUE.
func (s *SQLStore) MarkDueFees(ctx context.Context, today time.Time) (int, error) {
	result, err := s.db.NewUpdate().
		Model((*ReceivableFee)(nil)).
		Set("status = ?", FeeStatusDue).
		Where("status = ?", FeeStatusUnpaid).
		Where("due_date < ?", today).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to mark due receivable fees: %w", err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(updated), nil
}

// nextPeriodStart walks the membership's billing periods forward from its
// start date and returns the first period start strictly after today.
func nextPeriodStart(start time.Time, interval FeeInterval, today time.Time) time.Time {
	next := start
	for !next.After(today) {
		next = next.AddDate(0, int(interval), 0)
	}

	return next
}
