// Package tasks holds the runnable jobs behind the CLI tasks and the cron
// schedule. Each runner opens its own database connection, runs to
// completion and reports a processed count to the metrics recorder.
package tasks

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/uptrace/bun"
	"k8s.io/klog"

	"github.com/bcaldwell/bookops/internal/bookkeeping"
	"github.com/bcaldwell/bookops/internal/importers"
	"github.com/bcaldwell/bookops/internal/members"
	"github.com/bcaldwell/bookops/internal/metrics"
	"github.com/bcaldwell/bookops/internal/reports"
	"github.com/bcaldwell/bookops/pkg/config"
	"github.com/bcaldwell/bookops/pkg/postgresutils"
)

const cutoverDateFormat = "2006-01-02"

func openStores() (*bun.DB, *bookkeeping.SQLStore, *members.SQLStore, error) {
	db, err := postgresutils.CreatePostgresClient(config.CurrentBookkeepingConfig().SQL.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	bookStore := bookkeeping.NewSQLStore(db)
	if err := bookStore.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	memberStore := members.NewSQLStore(db)
	if err := memberStore.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	return db, bookStore, memberStore, nil
}

func recorder() *metrics.Recorder {
	rec, err := metrics.NewRecorder(config.CurrentInfluxSecrets(), config.CurrentMetricsConfig())
	if err != nil {
		klog.Errorf("failed to set up metrics recorder: %v", err)
		return nil
	}

	return rec
}

// ImportRunner imports one statement file into a cash book.
type ImportRunner struct {
	File      string
	Format    string
	CashBook  string
	Creator   string
	StartDate string
	EndDate   string
}

func (r ImportRunner) Run() error {
	db, bookStore, _, err := openStores()
	if err != nil {
		return err
	}
	defer db.Close()

	opts := importers.Options{}

	if r.StartDate != "" {
		opts.StartDate, err = time.Parse(cutoverDateFormat, r.StartDate)
		if err != nil {
			return fmt.Errorf("invalid start date %q: %w", r.StartDate, err)
		}
	}

	if r.EndDate != "" {
		opts.EndDate, err = time.Parse(cutoverDateFormat, r.EndDate)
		if err != nil {
			return fmt.Errorf("invalid end date %q: %w", r.EndDate, err)
		}
	}

	file, err := os.Open(r.File)
	if err != nil {
		return err
	}
	defer file.Close()

	service := importers.NewService(bookStore, config.CurrentBookkeepingConfig())

	written, err := service.ImportTransactions(context.Background(), file, r.Format, r.CashBook, r.Creator, opts)
	recorder().RecordRun("import", written, err)
	if err != nil {
		return err
	}

	klog.Infof("Imported %d transactions into cash book %s", written, r.CashBook)

	return nil
}

// CategorizeRunner runs the rule engine over every transaction that is
// still uncategorized.
type CategorizeRunner struct{}

func (r CategorizeRunner) Run() error {
	db, bookStore, _, err := openStores()
	if err != nil {
		return err
	}
	defer db.Close()

	cfg := config.CurrentBookkeepingConfig()

	transactions, err := bookStore.UncategorizedTransactions(context.Background(), cfg.UncategorizedCategory)
	if err != nil {
		return err
	}

	categorizer := bookkeeping.NewCategorizer(bookStore, cfg.DonationCategory, cfg.DonationThreshold)

	categorized, err := categorizer.CategorizeBatch(context.Background(), transactions)
	recorder().RecordRun("categorize", categorized, err)
	if err != nil {
		return err
	}

	klog.Infof("Categorized %d of %d transactions", categorized, len(transactions))

	return nil
}

// SeedRulesRunner loads the initial category match rules into an empty rule
// table.
type SeedRulesRunner struct{}

func (r SeedRulesRunner) Run() error {
	db, bookStore, _, err := openStores()
	if err != nil {
		return err
	}
	defer db.Close()

	return bookStore.SeedMatchRules(context.Background())
}

// CreateFeesRunner creates the next billing period's receivable fee for
// every active membership.
type CreateFeesRunner struct{}

func (r CreateFeesRunner) Run() error {
	db, _, memberStore, err := openStores()
	if err != nil {
		return err
	}
	defer db.Close()

	created, err := memberStore.CreateFeesForNextPeriod(context.Background(), time.Now(), config.CurrentMembersConfig().FeeDueDays)
	recorder().RecordRun("create-fees", created, err)
	if err != nil {
		return err
	}

	klog.Infof("Created %d receivable fees", created)

	return nil
}

// SetDueFeesRunner flips unpaid fees past their due date to DUE.
type SetDueFeesRunner struct{}

func (r SetDueFeesRunner) Run() error {
	db, _, memberStore, err := openStores()
	if err != nil {
		return err
	}
	defer db.Close()

	updated, err := memberStore.MarkDueFees(context.Background(), time.Now())
	recorder().RecordRun("set-due-fees", updated, err)
	if err != nil {
		return err
	}

	klog.Infof("Marked %d receivable fees as due", updated)

	return nil
}

// MatchFeesRunner reconciles open receivable fees against imported
// transactions.
type MatchFeesRunner struct{}

func (r MatchFeesRunner) Run() error {
	db, _, memberStore, err := openStores()
	if err != nil {
		return err
	}
	defer db.Close()

	cutover, err := time.Parse(cutoverDateFormat, config.CurrentMembersConfig().MatchCutoverDate)
	if err != nil {
		return fmt.Errorf("invalid match cutover date: %w", err)
	}

	matcher := members.NewMatcher(memberStore, config.CurrentBookkeepingConfig().MembershipFeeCategory, cutover)

	matched, err := matcher.MatchFees(context.Background())
	recorder().RecordRun("match-fees", matched, err)
	if err != nil {
		return err
	}

	klog.Infof("Matched %d receivable fees with transactions", matched)

	return nil
}

// SummaryRunner pushes per cash book summaries for the current month to
// influx.
type SummaryRunner struct{}

func (r SummaryRunner) Run() error {
	db, _, _, err := openStores()
	if err != nil {
		return err
	}
	defer db.Close()

	now := time.Now()

	summaries, err := reports.NewReporter(db).MonthSummaries(context.Background(), now.Year(), now.Month())
	if err != nil {
		return err
	}

	recorder().RecordSummaries(summaries)

	klog.Infof("Recorded summaries for %d cash books", len(summaries))

	return nil
}

// CronRunner is the recurring pass: categorize new transactions, roll the
// fee lifecycle forward and push summaries.
type CronRunner struct{}

func (r CronRunner) Run() error {
	runners := []interface{ Run() error }{
		CategorizeRunner{},
		CreateFeesRunner{},
		SetDueFeesRunner{},
		MatchFeesRunner{},
		SummaryRunner{},
	}

	for _, runner := range runners {
		if err := runner.Run(); err != nil {
			klog.Errorf("task failed: %v", err)
		}
	}

	return nil
}
