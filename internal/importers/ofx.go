package importers

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/xmlpath.v2"

	"github.com/bcaldwell/bookops/internal/bookkeeping"
	"github.com/bcaldwell/bookops/pkg/config"
	"github.com/bcaldwell/bookops/pkg/currencyutils"
)

const ofxDateFormat = "20060102150405"

// ofxTransaction is one STMTTRN block of a bank statement.
type ofxTransaction struct {
	datePosted time.Time
	amount     decimal.Decimal
	fitID      string
	checkNum   string
	memo       string
}

// reference joins the financial institution transaction id and the check
// number, omitting empty parts. The composite is the upsert/dedup key.
func (t ofxTransaction) reference() string {
	parts := make([]string, 0, 2)

	for _, field := range []string{t.fitID, t.checkNum} {
		if field != "" {
			parts = append(parts, field)
		}
	}

	return strings.Join(parts, "-")
}

// OFXImporter imports OFX bank statements. New transactions land in the
// uncategorized category so they later flow through the categorizer;
// re-imported references only get description and amount refreshed.
type OFXImporter struct {
	store                 Store
	uncategorizedCategory string
	defaultIgnoredMemos   []string
}

func NewOFXImporter(store Store, cfg *config.BookkeepingConfig) *OFXImporter {
	return &OFXImporter{
		store:                 store,
		uncategorizedCategory: cfg.UncategorizedCategory,
		defaultIgnoredMemos:   cfg.IgnoredMemos,
	}
}

func (i *OFXImporter) Import(ctx context.Context, content []byte, cashBook *bookkeeping.CashBook, creator string, opts Options) (int, error) {
	ofxTransactions, err := parseOFX(content)
	if err != nil {
		return 0, err
	}

	uncategorized, err := i.store.GetOrCreateCategory(ctx, i.uncategorizedCategory)
	if err != nil {
		return 0, err
	}

	ignoredMemos := opts.IgnoredMemos
	if ignoredMemos == nil {
		ignoredMemos = i.defaultIgnoredMemos
	}

	ignored := make(map[string]bool, len(ignoredMemos))
	for _, memo := range ignoredMemos {
		ignored[memo] = true
	}

	// fresh slice per run, records never accumulate across imports
	records := make([]*bookkeeping.Transaction, 0, len(ofxTransactions))

	for _, ofxTx := range ofxTransactions {
		if ignored[ofxTx.memo] {
			continue
		}

		if !opts.StartDate.IsZero() && ofxTx.datePosted.Before(opts.StartDate) {
			continue
		}

		if !opts.EndDate.IsZero() && ofxTx.datePosted.After(opts.EndDate) {
			continue
		}

		tx := &bookkeeping.Transaction{
			Reference:   ofxTx.reference(),
			Date:        ofxTx.datePosted,
			Description: ofxTx.memo,
			Amount:      ofxTx.amount,
			CashBookID:  &cashBook.ID,
			CreatedBy:   creator,
		}
		tx.SetCategory(uncategorized)

		records = append(records, tx)
	}

	if err := i.store.UpsertTransactions(ctx, records); err != nil {
		return 0, err
	}

	return len(records), nil
}

// parseOFX tries the lenient scanner first since real bank files are often
// SGML-style without closing tags. When that fails, a stricter XML tree walk
// gets a chance. If neither can interpret the file an InvalidFileFormatError
// is returned before any record is produced.
func parseOFX(content []byte) ([]ofxTransaction, error) {
	transactions, lenientErr := parseOFXLenient(content)
	if lenientErr == nil {
		return transactions, nil
	}

	transactions, treeErr := parseOFXTree(content)
	if treeErr == nil {
		return transactions, nil
	}

	return nil, &InvalidFileFormatError{
		Format: "ofx",
		Reason: fmt.Sprintf("lenient parser: %v; tree parser: %v", lenientErr, treeErr),
	}
}

var (
	stmtTrnSplitRe = regexp.MustCompile(`(?i)<STMTTRN>`)
	stmtTrnEndRe   = regexp.MustCompile(`(?i)</STMTTRN>`)
	ofxFieldRe     = regexp.MustCompile(`(?i)<(DTPOSTED|TRNAMT|FITID|CHECKNUM|MEMO)>([^<\r\n]*)`)
	leadingDigits  = regexp.MustCompile(`^\d+`)
)

// parseOFXLenient scans the raw text for STMTTRN blocks without requiring a
// well-formed document. Tags may be unclosed and dates may carry timezone
// suffixes like 20240802120000[-03:BRT].
func parseOFXLenient(content []byte) ([]ofxTransaction, error) {
	text := string(content)

	if !strings.Contains(strings.ToUpper(text), "<OFX") && !strings.Contains(strings.ToUpper(text), "OFXHEADER") {
		return nil, fmt.Errorf("no OFX header found")
	}

	blocks := stmtTrnSplitRe.Split(text, -1)

	transactions := make([]ofxTransaction, 0, len(blocks)-1)

	// first chunk is everything before the first transaction
	for _, block := range blocks[1:] {
		if loc := stmtTrnEndRe.FindStringIndex(block); loc != nil {
			block = block[:loc[0]]
		}

		transaction, err := parseOFXBlock(block)
		if err != nil {
			return nil, err
		}

		transactions = append(transactions, transaction)
	}

	return transactions, nil
}

func parseOFXBlock(block string) (ofxTransaction, error) {
	var transaction ofxTransaction

	for _, match := range ofxFieldRe.FindAllStringSubmatch(block, -1) {
		tag := strings.ToUpper(match[1])
		value := strings.TrimSpace(match[2])

		var err error

		switch tag {
		case "DTPOSTED":
			transaction.datePosted, err = parseOFXDate(value)
		case "TRNAMT":
			transaction.amount, err = currencyutils.ParseStatementAmount(value)
		case "FITID":
			transaction.fitID = value
		case "CHECKNUM":
			transaction.checkNum = value
		case "MEMO":
			transaction.memo = value
		}

		if err != nil {
			return ofxTransaction{}, err
		}
	}

	if transaction.reference() == "" {
		return ofxTransaction{}, fmt.Errorf("statement transaction without FITID or CHECKNUM")
	}

	return transaction, nil
}

// parseOFXDate parses the leading digits of a DTPOSTED value, which may be a
// bare date or a full timestamp followed by timezone decoration.
func parseOFXDate(value string) (time.Time, error) {
	digits := leadingDigits.FindString(value)

	switch {
	case len(digits) >= len(ofxDateFormat):
		return time.Parse(ofxDateFormat, digits[:len(ofxDateFormat)])
	case len(digits) >= 8:
		return time.Parse("20060102", digits[:8])
	default:
		return time.Time{}, fmt.Errorf("failed to parse OFX date %q", value)
	}
}

var (
	stmtTrnPath = xmlpath.MustCompile("//STMTTRN")

	ofxTreePaths = map[string]*xmlpath.Path{
		"DTPOSTED": xmlpath.MustCompile("DTPOSTED"),
		"TRNAMT":   xmlpath.MustCompile("TRNAMT"),
		"FITID":    xmlpath.MustCompile("FITID"),
		"CHECKNUM": xmlpath.MustCompile("CHECKNUM"),
		"MEMO":     xmlpath.MustCompile("MEMO"),
	}
)

// parseOFXTree is the strict fallback for well-formed XML statements. It
// walks the STMTTRN elements and extracts the posting date, amount,
// financial institution id, check number and memo.
func parseOFXTree(content []byte) ([]ofxTransaction, error) {
	root, err := xmlpath.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX as XML: %w", err)
	}

	var transactions []ofxTransaction

	iter := stmtTrnPath.Iter(root)
	for iter.Next() {
		node := iter.Node()

		var transaction ofxTransaction

		if value, ok := ofxTreePaths["DTPOSTED"].String(node); ok {
			transaction.datePosted, err = time.Parse(ofxDateFormat, strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("failed to parse posting date: %w", err)
			}
		}

		if value, ok := ofxTreePaths["TRNAMT"].String(node); ok {
			transaction.amount, err = currencyutils.ParseStatementAmount(value)
			if err != nil {
				return nil, err
			}
		}

		if value, ok := ofxTreePaths["FITID"].String(node); ok {
			transaction.fitID = strings.TrimSpace(value)
		}

		if value, ok := ofxTreePaths["CHECKNUM"].String(node); ok {
			transaction.checkNum = strings.TrimSpace(value)
		}

		if value, ok := ofxTreePaths["MEMO"].String(node); ok {
			transaction.memo = strings.TrimSpace(value)
		}

		if transaction.reference() == "" {
			return nil, fmt.Errorf("statement transaction without FITID or CHECKNUM")
		}

		transactions = append(transactions, transaction)
	}

	if len(transactions) == 0 {
		return nil, fmt.Errorf("no statement transactions found")
	}

	return transactions, nil
}
