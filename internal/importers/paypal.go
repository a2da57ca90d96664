package importers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/bcaldwell/bookops/internal/bookkeeping"
	"github.com/bcaldwell/bookops/pkg/config"
	"github.com/bcaldwell/bookops/pkg/currencyutils"
)

// Row type discriminators used by the PayPal export. Dispatch is on the
// literal string, not a pattern.
const (
	paypalTypeWithdrawal         = "Retirada geral - Conta bancária"
	paypalTypeCurrencyConversion = "Conversão de moeda em geral"
	paypalTypeDonation           = "Pagamento de doação"
	paypalTypeSubscription       = "Pagamento de assinaturas"
)

const (
	paypalDateFormat = "02/01/2006"
	localCurrency    = "BRL"
)

// paypalRow maps the columns of the PayPal activity export. Some header
// names carry a trailing space in the real files.
type paypalRow struct {
	Date          string `csv:"Data"`
	Name          string `csv:"Nome"`
	BankName      string `csv:"Nome do banco"`
	Type          string `csv:"Descrição"`
	Currency      string `csv:"Moeda"`
	Gross         string `csv:"Bruto "`
	Fee           string `csv:"Tarifa "`
	TransactionID string `csv:"ID da transação"`
}

// PayPalImporter imports the PayPal activity CSV export. Donation,
// subscription and generic payment rows are split into two records each, the
// principal and the processing fee, with distinct references so both survive
// the unique-reference dedup.
type PayPalImporter struct {
	store                 Store
	donationCategory      string
	membershipFeeCategory string
	membershipFeeAmounts  []decimal.Decimal
}

func NewPayPalImporter(store Store, cfg *config.BookkeepingConfig) *PayPalImporter {
	return &PayPalImporter{
		store:                 store,
		donationCategory:      cfg.DonationCategory,
		membershipFeeCategory: cfg.MembershipFeeCategory,
		membershipFeeAmounts:  cfg.MembershipFeeAmounts,
	}
}

func (i *PayPalImporter) Import(ctx context.Context, content []byte, cashBook *bookkeeping.CashBook, creator string, _ Options) (int, error) {
	rows, err := parsePayPalRows(content)
	if err != nil {
		return 0, err
	}

	categories, err := i.loadCategories(ctx)
	if err != nil {
		return 0, err
	}

	// fresh slice per run, records never accumulate across imports
	records := make([]*bookkeeping.Transaction, 0, len(rows))

	for _, row := range rows {
		rowRecords, err := i.mapRow(row, categories, cashBook, creator)
		if err != nil {
			return 0, err
		}

		records = append(records, rowRecords...)
	}

	if err := i.store.UpsertTransactions(ctx, records); err != nil {
		return 0, err
	}

	return len(records), nil
}

func (i *PayPalImporter) loadCategories(ctx context.Context) (map[string]*bookkeeping.Category, error) {
	categories := map[string]*bookkeeping.Category{}

	for _, name := range []string{
		bookkeeping.CategoryBankFees,
		bookkeeping.CategoryCashBookTransfer,
		bookkeeping.CategoryRecurringDonation,
		i.donationCategory,
		i.membershipFeeCategory,
	} {
		category, err := i.store.GetOrCreateCategory(ctx, name)
		if err != nil {
			return nil, err
		}

		categories[name] = category
	}

	return categories, nil
}

// mapRow maps one export row to zero or more transaction records based on
// its type discriminator.
func (i *PayPalImporter) mapRow(row paypalRow, categories map[string]*bookkeeping.Category, cashBook *bookkeeping.CashBook, creator string) ([]*bookkeeping.Transaction, error) {
	date, err := time.Parse(paypalDateFormat, row.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to parse date of transaction %s: %w", row.TransactionID, err)
	}

	gross, err := currencyutils.ParseBrazilianNumber(row.Gross)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", row.TransactionID, err)
	}

	fee, err := currencyutils.ParseBrazilianNumber(row.Fee)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", row.TransactionID, err)
	}

	record := func(reference, description string, amount decimal.Decimal, category *bookkeeping.Category) *bookkeeping.Transaction {
		tx := &bookkeeping.Transaction{
			Reference:   reference,
			Date:        date,
			Description: description,
			Amount:      amount,
			CashBookID:  &cashBook.ID,
			CreatedBy:   creator,
		}
		if category != nil {
			tx.SetCategory(category)
		}

		return tx
	}

	// the processing fee gets its own record with a suffixed reference
	feeRecord := func(description string) *bookkeeping.Transaction {
		return record(row.TransactionID+"T", "Taxa Intermediação - "+description, fee, categories[bookkeeping.CategoryBankFees])
	}

	switch row.Type {
	case paypalTypeWithdrawal:
		description := fmt.Sprintf("%s - %s", row.Type, row.BankName)
		return []*bookkeeping.Transaction{
			record(row.TransactionID, description, gross, categories[bookkeeping.CategoryCashBookTransfer]),
		}, nil

	case paypalTypeCurrencyConversion:
		if row.Currency != localCurrency {
			return nil, nil
		}

		// the only USD payer, converted to BRL by PayPal
		return []*bookkeeping.Transaction{
			record(row.TransactionID, "Mensalidade LHC - USD50 - Marcio Paduan Donadio", gross, categories[i.membershipFeeCategory]),
		}, nil

	case paypalTypeDonation:
		description := "Doação Recebida de " + row.Name

		return []*bookkeeping.Transaction{
			record(row.TransactionID, description, gross, categories[i.donationCategory]),
			feeRecord(description),
		}, nil

	case paypalTypeSubscription:
		if row.Currency != localCurrency {
			// foreign currency subscriptions are handled by a separate
			// reconciliation job
			return nil, nil
		}

		feeType := "Contribuição"
		category := categories[bookkeeping.CategoryRecurringDonation]

		if i.isMembershipFeeAmount(gross) {
			feeType = "Mensalidade"
			category = categories[i.membershipFeeCategory]
		}

		description := fmt.Sprintf("%s - %s", feeType, row.Name)

		return []*bookkeeping.Transaction{
			record(row.TransactionID, description, gross, category),
			feeRecord(description),
		}, nil

	default:
		if row.Currency != localCurrency {
			return nil, nil
		}

		description := fmt.Sprintf("%s - %s", row.Type, row.Name)

		return []*bookkeeping.Transaction{
			record(row.TransactionID, description, gross, nil),
			feeRecord(description),
		}, nil
	}
}

func (i *PayPalImporter) isMembershipFeeAmount(amount decimal.Decimal) bool {
	for _, fee := range i.membershipFeeAmounts {
		if amount.Cmp(fee) == 0 {
			return true
		}
	}

	return false
}

func parsePayPalRows(content []byte) ([]paypalRow, error) {
	// PayPal prefixes the export with a byte-order-mark that breaks the CSV
	// header, strip it before parsing
	text := strings.TrimPrefix(string(content), "\uFEFF")

	var rows []paypalRow
	if err := gocsv.UnmarshalString(text, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse PayPal csv: %w", err)
	}

	return rows, nil
}
