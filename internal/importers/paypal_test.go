package importers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcaldwell/bookops/internal/bookkeeping"
)

const paypalHeader = `"Data","Nome","Nome do banco","Descrição","Moeda","Bruto ","Tarifa ","ID da transação"`

func importPayPal(t *testing.T, store *fakeStore, csv string) []*bookkeeping.Transaction {
	t.Helper()

	importer := NewPayPalImporter(store, testBookkeepingConfig())

	cashBook, err := store.GetOrCreateCashBook(context.Background(), "PayPal")
	require.NoError(t, err)

	_, err = importer.Import(context.Background(), []byte(csv), cashBook, "importer", Options{})
	require.NoError(t, err)

	return store.upserted
}

func TestPayPalImportStripsBOM(t *testing.T) {
	csv := "\uFEFF" + paypalHeader + "\n" +
		`"05/08/2024","","Banco Itau","Retirada geral - Conta bancária","BRL","-1.234,56","0,00","TX1"` + "\n"

	store := newFakeStore()
	records := importPayPal(t, store, csv)

	require.Len(t, records, 1)
	assert.Equal(t, "TX1", records[0].Reference)
	assert.Equal(t, "-1234.56", records[0].Amount.String())
}

func TestPayPalImportWithdrawal(t *testing.T) {
	csv := paypalHeader + "\n" +
		`"05/08/2024","","Banco Itau","Retirada geral - Conta bancária","BRL","-500,00","0,00","TX1"` + "\n"

	store := newFakeStore()
	records := importPayPal(t, store, csv)

	require.Len(t, records, 1)
	assert.Equal(t, "Retirada geral - Conta bancária - Banco Itau", records[0].Description)
	assert.Equal(t, time.Date(2024, time.August, 5, 0, 0, 0, 0, time.UTC), records[0].Date)
	require.NotNil(t, records[0].CategoryID)
	assert.Equal(t, *store.categoryID(bookkeeping.CategoryCashBookTransfer), *records[0].CategoryID)
}

func TestPayPalImportDonationSplitsFeeRecord(t *testing.T) {
	csv := paypalHeader + "\n" +
		`"10/08/2024","Maria Silva","","Pagamento de doação","BRL","100,00","-4,79","TX2"` + "\n"

	store := newFakeStore()
	records := importPayPal(t, store, csv)

	require.Len(t, records, 2)

	principal, fee := records[0], records[1]

	assert.Equal(t, "TX2", principal.Reference)
	assert.Equal(t, "Doação Recebida de Maria Silva", principal.Description)
	assert.Equal(t, "100", principal.Amount.String())
	assert.Equal(t, *store.categoryID("Doação"), *principal.CategoryID)

	assert.Equal(t, "TX2T", fee.Reference)
	assert.Equal(t, "Taxa Intermediação - Doação Recebida de Maria Silva", fee.Description)
	assert.Equal(t, "-4.79", fee.Amount.String())
	assert.Equal(t, *store.categoryID(bookkeeping.CategoryBankFees), *fee.CategoryID)
}

func TestPayPalImportSubscription(t *testing.T) {
	csv := paypalHeader + "\n" +
		`"12/08/2024","Joao Souza","","Pagamento de assinaturas","BRL","85,00","-3,50","TX3"` + "\n" +
		`"12/08/2024","Ana Lima","","Pagamento de assinaturas","BRL","40,00","-2,10","TX4"` + "\n"

	store := newFakeStore()
	records := importPayPal(t, store, csv)

	require.Len(t, records, 4)

	// 85 is a membership fee amount, 40 is a recurring donation
	assert.Equal(t, "Mensalidade - Joao Souza", records[0].Description)
	assert.Equal(t, *store.categoryID("Contribuição Associativa"), *records[0].CategoryID)

	assert.Equal(t, "Contribuição - Ana Lima", records[2].Description)
	assert.Equal(t, *store.categoryID(bookkeeping.CategoryRecurringDonation), *records[2].CategoryID)
}

func TestPayPalImportSkipsForeignCurrency(t *testing.T) {
	csv := paypalHeader + "\n" +
		`"12/08/2024","John Doe","","Pagamento de assinaturas","USD","50,00","-2,00","TX5"` + "\n"

	store := newFakeStore()
	records := importPayPal(t, store, csv)

	assert.Empty(t, records)
}

func TestPayPalImportCurrencyConversion(t *testing.T) {
	csv := paypalHeader + "\n" +
		`"15/08/2024","","","Conversão de moeda em geral","USD","-50,00","0,00","TX6"` + "\n" +
		`"15/08/2024","","","Conversão de moeda em geral","BRL","270,35","0,00","TX7"` + "\n"

	store := newFakeStore()
	records := importPayPal(t, store, csv)

	// only the BRL leg of the conversion lands as a record
	require.Len(t, records, 1)
	assert.Equal(t, "TX7", records[0].Reference)
	assert.Equal(t, "270.35", records[0].Amount.String())
	assert.Equal(t, *store.categoryID("Contribuição Associativa"), *records[0].CategoryID)
}

func TestPayPalImportGenericPayment(t *testing.T) {
	csv := paypalHeader + "\n" +
		`"20/08/2024","Fornecedor XYZ","","Pagamento de mercadorias","BRL","-230,00","0,00","TX8"` + "\n"

	store := newFakeStore()
	records := importPayPal(t, store, csv)

	require.Len(t, records, 2)
	assert.Equal(t, "Pagamento de mercadorias - Fornecedor XYZ", records[0].Description)
	assert.Nil(t, records[0].CategoryID)
	assert.Equal(t, "TX8T", records[1].Reference)
}

func TestPayPalImportInvalidDateAborts(t *testing.T) {
	csv := paypalHeader + "\n" +
		`"2024-08-20","Maria","","Pagamento de doação","BRL","100,00","-4,79","TX9"` + "\n"

	store := newFakeStore()
	importer := NewPayPalImporter(store, testBookkeepingConfig())

	cashBook, err := store.GetOrCreateCashBook(context.Background(), "PayPal")
	require.NoError(t, err)

	_, err = importer.Import(context.Background(), []byte(csv), cashBook, "importer", Options{})

	require.Error(t, err)
	assert.Empty(t, store.upserted)
}
