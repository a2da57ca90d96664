// Package reports aggregates transactions into per cash book summaries.
package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// CashBookSummary is the per cash book aggregation for one period plus the
// running balance over all time.
type CashBookSummary struct {
	CashBook       string          `bun:"cash_book"`
	Deposits       decimal.Decimal `bun:"deposits"`
	Withdraws      decimal.Decimal `bun:"withdraws"`
	PeriodBalance  decimal.Decimal `bun:"period_balance"`
	OverallBalance decimal.Decimal `bun:"overall_balance"`

	StartDate time.Time `bun:"-"`
	EndDate   time.Time `bun:"-"`
}

type Reporter struct {
	db *bun.DB
}

func NewReporter(db *bun.DB) *Reporter {
	return &Reporter{db: db}
}

// CashBookSummaries returns one summary per cash book for [startDate,
// endDate). Deposits are non-negative amounts, withdraws negative ones, the
// overall balance ignores the period bounds.
func (r *Reporter) CashBookSummaries(ctx context.Context, startDate, endDate time.Time) ([]CashBookSummary, error) {
	var summaries []CashBookSummary

	err := r.db.NewSelect().
		TableExpr("cash_books AS cb").
		ColumnExpr("cb.name AS cash_book").
		ColumnExpr("COALESCE(SUM(t.amount) FILTER (WHERE t.amount >= 0 AND t.date >= ? AND t.date < ?), 0) AS deposits", startDate, endDate).
		ColumnExpr("COALESCE(SUM(t.amount) FILTER (WHERE t.amount < 0 AND t.date >= ? AND t.date < ?), 0) AS withdraws", startDate, endDate).
		ColumnExpr("COALESCE(SUM(t.amount) FILTER (WHERE t.date >= ? AND t.date < ?), 0) AS period_balance", startDate, endDate).
		ColumnExpr("COALESCE(SUM(t.amount), 0) AS overall_balance").
		Join("LEFT JOIN transactions AS t ON t.cash_book_id = cb.id").
		GroupExpr("cb.id, cb.name").
		OrderExpr("cb.name ASC").
		Scan(ctx, &summaries)
	if err != nil {
		return nil, fmt.Errorf("failed to load cash book summaries: %w", err)
	}

	for i := range summaries {
		summaries[i].StartDate = startDate
		summaries[i].EndDate = endDate
	}

	return summaries, nil
}

// MonthSummaries is CashBookSummaries for one calendar month.
func (r *Reporter) MonthSummaries(ctx context.Context, year int, month time.Month) ([]CashBookSummary, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("invalid month %d", month)
	}

	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)

	return r.CashBookSummaries(ctx, start, start.AddDate(0, 1, 0))
}
