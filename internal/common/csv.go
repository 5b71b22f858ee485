// Package common provides CSV import and export shared by the commands.
package common

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"fjacquet/receipt-recon/internal/logging"
	"fjacquet/receipt-recon/internal/models"
)

// Delimiter is the CSV field separator.
var Delimiter rune = ','

// SetDelimiter sets the delimiter for CSV input and output.
func SetDelimiter(delim rune) {
	Delimiter = delim
}

// LinkRow is the CSV form of a ReceiptPaymentLink.
type LinkRow struct {
	Fingerprint string `csv:"Fingerprint"`
	PaymentID   string `csv:"PaymentID"`
	Decision    string `csv:"Decision"`
	Candidates  string `csv:"Candidates"`
	Amount      string `csv:"Amount"`
	Currency    string `csv:"Currency"`
	DecidedAt   string `csv:"DecidedAt"`
}

// PaymentRow is the CSV form of a PendingPayment, used for imports.
type PaymentRow struct {
	ID        string `csv:"ID"`
	Amount    string `csv:"Amount"`
	Currency  string `csv:"Currency"`
	State     string `csv:"State"`
	CreatedAt string `csv:"CreatedAt"`
	Reference string `csv:"Reference"`
}

// NewLinkRow converts link for export.
func NewLinkRow(link models.ReceiptPaymentLink) LinkRow {
	row := LinkRow{
		Fingerprint: link.Fingerprint,
		PaymentID:   link.PaymentID,
		Decision:    string(link.Decision),
		Candidates:  strings.Join(link.Candidates, " "),
		Amount:      link.Amount.Amount.StringFixed(2),
		Currency:    link.Amount.Currency,
	}
	if !link.DecidedAt.IsZero() {
		row.DecidedAt = link.DecidedAt.UTC().Format(time.RFC3339)
	}
	return row
}

// Payment converts an imported row. Empty state means awaiting
// confirmation; empty currency defaults to defaultCurrency.
func (r PaymentRow) Payment(defaultCurrency string) (models.PendingPayment, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(r.Amount))
	if err != nil {
		return models.PendingPayment{}, fmt.Errorf("payment %s: invalid amount %q: %w", r.ID, r.Amount, err)
	}
	currency := strings.TrimSpace(r.Currency)
	if currency == "" {
		currency = defaultCurrency
	}
	p := models.PendingPayment{
		ID:        strings.TrimSpace(r.ID),
		Amount:    models.NewMoney(amount, currency),
		State:     models.PaymentState(strings.TrimSpace(r.State)),
		Reference: r.Reference,
	}
	if r.CreatedAt != "" {
		if p.CreatedAt, err = time.Parse(time.RFC3339, strings.TrimSpace(r.CreatedAt)); err != nil {
			return models.PendingPayment{}, fmt.Errorf("payment %s: invalid created_at %q: %w", r.ID, r.CreatedAt, err)
		}
	}
	return p, nil
}

// ReadCSVFile reads CSV data into a slice of structs using gocsv.
func ReadCSVFile[TCSVRow any](filePath string, logger logging.Logger) ([]TCSVRow, error) {
	logger.Info("Reading CSV file", logging.F(logging.FieldFile, filePath))

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("error opening CSV file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close file")
		}
	}()

	reader := csv.NewReader(file)
	reader.Comma = Delimiter
	var rows []TCSVRow
	if err := gocsv.UnmarshalCSV(reader, &rows); err != nil {
		return nil, fmt.Errorf("error parsing CSV file: %w", err)
	}

	logger.Info("Read CSV data", logging.F(logging.FieldCount, len(rows)))
	return rows, nil
}

// WriteLinks writes links as CSV to w.
func WriteLinks(w io.Writer, links []models.ReceiptPaymentLink, includeHeaders bool) error {
	rows := make([]LinkRow, len(links))
	for i, l := range links {
		rows[i] = NewLinkRow(l)
	}

	csvWriter := csv.NewWriter(w)
	csvWriter.Comma = Delimiter
	out := gocsv.NewSafeCSVWriter(csvWriter)

	var err error
	if includeHeaders {
		err = gocsv.MarshalCSV(rows, out)
	} else {
		err = gocsv.MarshalCSVWithoutHeaders(rows, out)
	}
	if err != nil {
		return fmt.Errorf("error writing CSV data: %w", err)
	}
	return nil
}

// WriteLinksToCSV writes links to csvFile, creating its directory.
func WriteLinksToCSV(links []models.ReceiptPaymentLink, csvFile string, includeHeaders bool, logger logging.Logger) error {
	if dir := filepath.Dir(csvFile); dir != "" {
		if err := os.MkdirAll(dir, models.PermissionDirectory); err != nil {
			return fmt.Errorf("error creating directory: %w", err)
		}
	}

	file, err := os.Create(csvFile)
	if err != nil {
		return fmt.Errorf("error creating CSV file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close file")
		}
	}()

	if err := WriteLinks(file, links, includeHeaders); err != nil {
		return err
	}
	logger.Info("Wrote links to CSV file",
		logging.F(logging.FieldFile, csvFile),
		logging.F(logging.FieldCount, len(links)))
	return nil
}
