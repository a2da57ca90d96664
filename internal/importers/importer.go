// Package importers turns external bank files into normalized transactions
// and upserts them keyed by their unique reference, so importing the same
// file twice never duplicates records.
package importers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"k8s.io/klog"

	"github.com/bcaldwell/bookops/internal/bookkeeping"
	"github.com/bcaldwell/bookops/pkg/config"
)

const (
	FormatPayPalCSV = "paypal-csv"
	FormatOFX       = "ofx"
)

// Store is the persistence surface the importers need.
type Store interface {
	GetOrCreateCategory(ctx context.Context, name string) (*bookkeeping.Category, error)
	GetOrCreateCashBook(ctx context.Context, name string) (*bookkeeping.CashBook, error)
	UpsertTransactions(ctx context.Context, txs []*bookkeeping.Transaction) error
}

// Options carries per-call import settings. Zero dates mean no bound; a nil
// IgnoredMemos falls back to the configured default list. Only the OFX
// importer consults these.
type Options struct {
	StartDate    time.Time
	EndDate      time.Time
	IgnoredMemos []string
}

// InvalidFileFormatError is returned when a statement file cannot be
// interpreted by any parser. It is raised before any record is produced, so
// a failed import never leaves a partial batch behind.
type InvalidFileFormatError struct {
	Format string
	Reason string
}

func (e *InvalidFileFormatError) Error() string {
	return fmt.Sprintf("invalid %s file: %s", e.Format, e.Reason)
}

// ImportTransactionsError is the opaque error surfaced to callers of
// ImportTransactions. The underlying cause is logged, not leaked.
type ImportTransactionsError struct {
	message string
}

func (e *ImportTransactionsError) Error() string {
	return e.message
}

// Importer converts one statement file format into transactions and upserts
// them.
type Importer interface {
	Import(ctx context.Context, content []byte, cashBook *bookkeeping.CashBook, creator string, opts Options) (int, error)
}

// Service dispatches uploaded statement files to the importer registered for
// their format.
type Service struct {
	store     Store
	importers map[string]Importer
}

func NewService(store Store, cfg *config.BookkeepingConfig) *Service {
	return &Service{
		store: store,
		importers: map[string]Importer{
			FormatPayPalCSV: NewPayPalImporter(store, cfg),
			FormatOFX:       NewOFXImporter(store, cfg),
		},
	}
}

// ImportTransactions reads the file and runs the importer registered for
// format against the named cash book. Unreadable files surface as
// InvalidFileFormatError; any other internal failure is logged in full and
// reported to the caller as an opaque ImportTransactionsError with a
// user-safe message only.
func (s *Service) ImportTransactions(ctx context.Context, file io.Reader, format, cashBookName, creator string, opts Options) (int, error) {
	written, err := s.importTransactions(ctx, file, format, cashBookName, creator, opts)
	if err != nil {
		var formatErr *InvalidFileFormatError
		if errors.As(err, &formatErr) {
			return 0, formatErr
		}

		klog.Errorf("import of %s file into cash book %q failed: %v", format, cashBookName, err)

		return 0, &ImportTransactionsError{message: "something wrong happened during file import"}
	}

	return written, nil
}

func (s *Service) importTransactions(ctx context.Context, file io.Reader, format, cashBookName, creator string, opts Options) (int, error) {
	importer, ok := s.importers[format]
	if !ok {
		return 0, fmt.Errorf("unable to find a suitable file importer for format %q", format)
	}

	content, err := io.ReadAll(file)
	if err != nil {
		return 0, fmt.Errorf("failed to read transactions file: %w", err)
	}

	cashBook, err := s.store.GetOrCreateCashBook(ctx, cashBookName)
	if err != nil {
		return 0, err
	}

	return importer.Import(ctx, content, cashBook, creator, opts)
}
