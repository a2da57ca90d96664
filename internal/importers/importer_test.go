package importers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcaldwell/bookops/internal/bookkeeping"
	"github.com/bcaldwell/bookops/pkg/config"
)

type fakeStore struct {
	categories  map[string]*bookkeeping.Category
	cashBooks   map[string]*bookkeeping.CashBook
	byReference map[string]*bookkeeping.Transaction
	upserted    []*bookkeeping.Transaction
	nextID      int64

	upsertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		categories:  map[string]*bookkeeping.Category{},
		cashBooks:   map[string]*bookkeeping.CashBook{},
		byReference: map[string]*bookkeeping.Transaction{},
	}
}

func (s *fakeStore) GetOrCreateCategory(_ context.Context, name string) (*bookkeeping.Category, error) {
	if category, ok := s.categories[name]; ok {
		return category, nil
	}

	s.nextID++
	category := &bookkeeping.Category{ID: s.nextID, Name: name}
	s.categories[name] = category

	return category, nil
}

func (s *fakeStore) GetOrCreateCashBook(_ context.Context, name string) (*bookkeeping.CashBook, error) {
	if cashBook, ok := s.cashBooks[name]; ok {
		return cashBook, nil
	}

	s.nextID++
	cashBook := &bookkeeping.CashBook{ID: s.nextID, Name: name}
	s.cashBooks[name] = cashBook

	return cashBook, nil
}

// UpsertTransactions mirrors the conflict contract of the SQL store: the
// reference is the unique key, an existing reference only gets description
// and amount refreshed.
func (s *fakeStore) UpsertTransactions(_ context.Context, txs []*bookkeeping.Transaction) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}

	for _, tx := range txs {
		if existing, ok := s.byReference[tx.Reference]; ok {
			existing.Description = tx.Description
			existing.Amount = tx.Amount
			continue
		}

		s.nextID++
		tx.ID = s.nextID
		s.byReference[tx.Reference] = tx
		s.upserted = append(s.upserted, tx)
	}

	return nil
}

func (s *fakeStore) categoryID(name string) *int64 {
	category, ok := s.categories[name]
	if !ok {
		return nil
	}

	return &category.ID
}

func testBookkeepingConfig() *config.BookkeepingConfig {
	return &config.BookkeepingConfig{
		UncategorizedCategory: "Uncategorized",
		DonationCategory:      "Doação",
		MembershipFeeCategory: "Contribuição Associativa",
		MembershipFeeAmounts: []decimal.Decimal{
			decimal.NewFromInt(75),
			decimal.NewFromInt(85),
			decimal.NewFromInt(110),
		},
		IgnoredMemos: []string{"APLIC.INVEST FACIL"},
	}
}

func TestImportTransactionsUnknownFormat(t *testing.T) {
	service := NewService(newFakeStore(), testBookkeepingConfig())

	_, err := service.ImportTransactions(context.Background(), strings.NewReader("data"), "qif", "Banco", "importer", Options{})

	require.Error(t, err)

	var importErr *ImportTransactionsError
	require.ErrorAs(t, err, &importErr)
	assert.Equal(t, "something wrong happened during file import", importErr.Error())
}

func TestImportTransactionsOpaqueOnStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.upsertErr = errors.New("connection refused to db host 10.0.0.7")

	service := NewService(store, testBookkeepingConfig())

	_, err := service.ImportTransactions(context.Background(), strings.NewReader(validOFXFile), FormatOFX, "Banco", "importer", Options{})

	require.Error(t, err)
	assert.NotContains(t, err.Error(), "10.0.0.7")

	var importErr *ImportTransactionsError
	require.ErrorAs(t, err, &importErr)
}

func TestImportTransactionsInvalidFormatSurfaces(t *testing.T) {
	service := NewService(newFakeStore(), testBookkeepingConfig())

	_, err := service.ImportTransactions(context.Background(), strings.NewReader("not a statement at all"), FormatOFX, "Banco", "importer", Options{})

	var formatErr *InvalidFileFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, "ofx", formatErr.Format)
}

func TestImportTransactionsReimportIsIdempotent(t *testing.T) {
	store := newFakeStore()
	service := NewService(store, testBookkeepingConfig())

	written, err := service.ImportTransactions(context.Background(), strings.NewReader(validOFXFile), FormatOFX, "Banco", "importer", Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	// categorization ran between the two imports
	fees, err := store.GetOrCreateCategory(context.Background(), "Tarifas Bancárias")
	require.NoError(t, err)

	first := store.byReference["20240802001-000000415742"]
	require.NotNil(t, first)
	first.SetCategory(fees)

	_, err = service.ImportTransactions(context.Background(), strings.NewReader(validOFXFile), FormatOFX, "Banco", "importer", Options{})
	require.NoError(t, err)

	// same file again, no new records and the assigned category survives
	assert.Len(t, store.byReference, 2)
	require.NotNil(t, first.CategoryID)
	assert.Equal(t, fees.ID, *first.CategoryID)
}

func TestImportTransactionsOverlappingFiles(t *testing.T) {
	fileA := `<OFX>
<STMTTRN>
<DTPOSTED>20240801
<TRNAMT>-10.00
<FITID>a1
<MEMO>TARIFA PACOTE
</STMTTRN>
<STMTTRN>
<DTPOSTED>20240802
<TRNAMT>-20.00
<FITID>a2
<MEMO>PAGTO FORNECEDOR
</STMTTRN>
</OFX>`

	// the next statement download overlaps the previous one: a2 again with
	// the bank's amended wording, plus one new transaction
	fileB := `<OFX>
<STMTTRN>
<DTPOSTED>20240802
<TRNAMT>-25.00
<FITID>a2
<MEMO>PAGTO FORNECEDOR LIMPEZA
</STMTTRN>
<STMTTRN>
<DTPOSTED>20240803
<TRNAMT>-30.00
<FITID>a3
<MEMO>TED ENVIADA
</STMTTRN>
</OFX>`

	store := newFakeStore()
	service := NewService(store, testBookkeepingConfig())

	_, err := service.ImportTransactions(context.Background(), strings.NewReader(fileA), FormatOFX, "Banco", "importer", Options{})
	require.NoError(t, err)
	require.Len(t, store.byReference, 2)

	_, err = service.ImportTransactions(context.Background(), strings.NewReader(fileB), FormatOFX, "Banco", "importer", Options{})
	require.NoError(t, err)

	// three unique references survive the overlap
	require.Len(t, store.byReference, 3)

	overlapped := store.byReference["a2"]
	require.NotNil(t, overlapped)
	assert.Equal(t, "PAGTO FORNECEDOR LIMPEZA", overlapped.Description)
	assert.Equal(t, "-25", overlapped.Amount.String())

	untouched := store.byReference["a1"]
	require.NotNil(t, untouched)
	assert.Equal(t, "TARIFA PACOTE", untouched.Description)
	assert.Equal(t, "-10", untouched.Amount.String())
}

func TestImportTransactionsDispatches(t *testing.T) {
	store := newFakeStore()
	service := NewService(store, testBookkeepingConfig())

	written, err := service.ImportTransactions(context.Background(), strings.NewReader(validOFXFile), FormatOFX, "Banco", "importer", Options{})

	require.NoError(t, err)
	assert.Equal(t, 2, written)
	assert.Len(t, store.upserted, 2)
	require.Contains(t, store.cashBooks, "Banco")

	for _, tx := range store.upserted {
		require.NotNil(t, tx.CashBookID)
		assert.Equal(t, store.cashBooks["Banco"].ID, *tx.CashBookID)
		assert.Equal(t, "importer", tx.CreatedBy)
	}
}
