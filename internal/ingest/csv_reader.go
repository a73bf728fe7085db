package ingest

import (
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"payments-engine/internal/domain"
)

var (
	ErrMissingColumn = stderrors.New("missing required column")
	ErrMalformedRow  = stderrors.New("malformed row")
)

const (
	columnType   = "type"
	columnClient = "client"
	columnTx     = "tx"
	columnAmount = "amount"
)

// Reader yields entries from CSV input with a `type, client, tx, amount` header.
// Columns are located by name, fields are trimmed, and the amount column may be
// empty or missing. Malformed rows are logged and skipped.
type Reader struct {
	csv     *csv.Reader
	logger  *slog.Logger
	columns map[string]int
	skipped int
}

func NewReader(r io.Reader, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	return &Reader{
		csv:    cr,
		logger: logger,
	}
}

// Skipped returns how many malformed rows were dropped so far.
func (r *Reader) Skipped() int {
	return r.skipped
}

// Next returns the next well-formed entry, or io.EOF once the input is exhausted.
func (r *Reader) Next() (domain.Entry, error) {
	if r.columns == nil {
		if err := r.readHeader(); err != nil {
			return domain.Entry{}, err
		}
	}

	for {
		record, err := r.csv.Read()
		if err == io.EOF {
			return domain.Entry{}, io.EOF
		}

		var parseErr *csv.ParseError
		if stderrors.As(err, &parseErr) {
			r.skip(parseErr.Line, err)
			continue
		}
		if err != nil {
			return domain.Entry{}, err
		}

		entry, err := r.parse(record)
		if err != nil {
			line, _ := r.csv.FieldPos(0)
			r.skip(line, err)
			continue
		}
		return entry, nil
	}
}

func (r *Reader) readHeader() error {
	header, err := r.csv.Read()
	if err != nil {
		return err
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		columns[name] = i
	}

	for _, required := range []string{columnType, columnClient, columnTx} {
		if _, ok := columns[required]; !ok {
			return fmt.Errorf("%w: %q", ErrMissingColumn, required)
		}
	}

	r.columns = columns
	return nil
}

func (r *Reader) field(record []string, column string) string {
	i, ok := r.columns[column]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (r *Reader) parse(record []string) (domain.Entry, error) {
	entryType, err := domain.ParseEntryType(r.field(record, columnType))
	if err != nil {
		return domain.Entry{}, fmt.Errorf("%w: %w", ErrMalformedRow, err)
	}

	client, err := strconv.ParseUint(r.field(record, columnClient), 10, 16)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("%w: client: %w", ErrMalformedRow, err)
	}

	tx, err := strconv.ParseUint(r.field(record, columnTx), 10, 32)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("%w: tx: %w", ErrMalformedRow, err)
	}

	entry := domain.Entry{
		Type:     entryType,
		ClientID: uint16(client),
		TxID:     uint32(tx),
	}

	if raw := r.field(record, columnAmount); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return domain.Entry{}, fmt.Errorf("%w: amount: %w", ErrMalformedRow, err)
		}
		entry.Amount = &amount
	}

	return entry, nil
}

func (r *Reader) skip(line int, err error) {
	r.skipped++
	r.logger.Warn("Error parsing transaction", "line", line, "error", err)
}
