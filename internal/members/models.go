// Package members tracks memberships and their recurring dues, and
// reconciles expected receivable fees against imported bank transactions.
package members

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/bcaldwell/bookops/internal/bookkeeping"
)

// FeeInterval is how often a membership pays, in months.
type FeeInterval int

const (
	FeeIntervalMonthly   FeeInterval = 1
	FeeIntervalQuarterly FeeInterval = 3
	FeeIntervalBiannual  FeeInterval = 6
	FeeIntervalAnnual    FeeInterval = 12
)

func (i FeeInterval) IsValid() bool {
	switch i {
	case FeeIntervalMonthly, FeeIntervalQuarterly, FeeIntervalBiannual, FeeIntervalAnnual:
		return true
	}

	return false
}

type FeeStatus string

const (
	FeeStatusUnpaid  FeeStatus = "UNPAID"
	FeeStatusDue     FeeStatus = "DUE"
	FeeStatusPaid    FeeStatus = "PAID"
	FeeStatusSkipped FeeStatus = "SKIPPED"
)

type Member struct {
	bun.BaseModel `bun:"table:members,alias:m"`

	ID          int64  `bun:"id,pk,autoincrement"`
	Name        string `bun:"name,notnull"`
	Email       string `bun:"email"`
	HasKey      bool   `bun:"has_key"`
	PhoneNumber string `bun:"phone_number"`
}

// Membership is the paying side of a member. Active means we expect to keep
// receiving fees from it.
type Membership struct {
	bun.BaseModel `bun:"table:memberships,alias:ms"`

	ID        int64           `bun:"id,pk,autoincrement"`
	MemberID  int64           `bun:"member_id,notnull,unique"`
	Member    *Member         `bun:"rel:belongs-to,join:member_id=id"`
	StartDate time.Time       `bun:"start_date,notnull,type:date"`
	EndDate   *time.Time      `bun:"end_date,nullzero,type:date"`
	Amount    decimal.Decimal `bun:"amount,notnull,type:numeric(10,2)"`
	Interval  FeeInterval     `bun:"interval,notnull"`
	Active    bool            `bun:"active,notnull,default:true"`
}

// ReceivableFee is one expected charge for one billing period of a
// membership. At most one exists per (membership, start date).
type ReceivableFee struct {
	bun.BaseModel `bun:"table:receivable_fees,alias:rf"`

	ID            int64                    `bun:"id,pk,autoincrement"`
	MembershipID  int64                    `bun:"membership_id,notnull,unique:one_fee_per_period"`
	Membership    *Membership              `bun:"rel:belongs-to,join:membership_id=id"`
	StartDate     time.Time                `bun:"start_date,notnull,type:date,unique:one_fee_per_period"`
	DueDate       time.Time                `bun:"due_date,notnull,type:date"`
	Amount        decimal.Decimal          `bun:"amount,notnull,type:numeric(10,2)"`
	Status        FeeStatus                `bun:"status,notnull"`
	TransactionID *int64                   `bun:"transaction_id,nullzero"`
	Transaction   *bookkeeping.Transaction `bun:"rel:belongs-to,join:transaction_id=id"`
}

// PaidWith marks the fee as paid by transaction. The transition is one-way:
// a fee that already holds a transaction is never rebound.
func (f *ReceivableFee) PaidWith(transaction *bookkeeping.Transaction) error {
	if f.TransactionID != nil {
		return fmt.Errorf("receivable fee %d is already paid with transaction %d", f.ID, *f.TransactionID)
	}

	f.Status = FeeStatusPaid
	f.TransactionID = &transaction.ID
	f.Transaction = transaction

	return nil
}

// FeeMatchRule holds one description pattern used to recognize a
// membership's payments, e.g. a name variant or tax-id format. Rules are
// evaluated in creation order and only by the fee matcher.
type FeeMatchRule struct {
	bun.BaseModel `bun:"table:receivable_fee_match_rules,alias:fmr"`

	ID           int64       `bun:"id,pk,autoincrement"`
	MembershipID int64       `bun:"membership_id,notnull"`
	Membership   *Membership `bun:"rel:belongs-to,join:membership_id=id"`
	Pattern      string      `bun:"pattern,notnull"`
}
