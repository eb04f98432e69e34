package importer

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/accountbook/internal/encoding"
	"github.com/MrJamesThe3rd/accountbook/internal/ledger"
	"github.com/MrJamesThe3rd/accountbook/internal/transaction"
)

const (
	colAccount = "idUserAccount"
	colType    = "type"
	colAmount  = "amount"
	colDate    = "effectiveDate"
)

var requiredCols = []string{colAccount, colType, colAmount}

// dateLayouts are tried in order for the effectiveDate column.
var dateLayouts = []string{time.DateOnly, "02-01-2006", "02/01/2006"}

var ErrMissingHeader = errors.New("csv header must contain idUserAccount, type and amount")

// Row is a parsed data row ready to be posted.
type Row struct {
	Line   int
	Params ledger.PostParams
}

// RowError explains why a row was skipped.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type colIndex map[string]int

// Parse decodes r to UTF-8, detects the delimiter from the header line and
// reads every data row. Malformed rows are reported in the second return
// value and do not stop parsing.
func Parse(r io.Reader) ([]Row, []RowError, error) {
	utf8r, charset, err := encoding.Decode(r)
	if err != nil {
		return nil, nil, fmt.Errorf("detecting encoding: %w", err)
	}

	br := bufio.NewReader(utf8r)

	header, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	reader := csv.NewReader(io.MultiReader(strings.NewReader(header), br))
	reader.Comma = detectDelimiter(header)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headerRow, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading header (%s): %w", charset, err)
	}

	cols := indexHeader(headerRow)
	for _, name := range requiredCols {
		if _, ok := cols[name]; !ok {
			return nil, nil, ErrMissingHeader
		}
	}

	var (
		rows []Row
		errs []RowError
	)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				errs = append(errs, RowError{Line: parseErr.Line, Reason: parseErr.Err.Error()})
				continue
			}

			return nil, nil, fmt.Errorf("reading csv: %w", err)
		}

		if blank(record) {
			continue
		}

		lineNo, _ := reader.FieldPos(0)

		params, err := parseRecord(cols, record)
		if err != nil {
			errs = append(errs, RowError{Line: lineNo, Reason: err.Error()})
			continue
		}

		rows = append(rows, Row{Line: lineNo, Params: params})
	}

	return rows, errs, nil
}

// detectDelimiter picks whichever of ';' and ',' occurs more often in the
// header. Ties go to ','.
func detectDelimiter(header string) rune {
	if strings.Count(header, ";") > strings.Count(header, ",") {
		return ';'
	}

	return ','
}

// indexHeader matches column names case-insensitively.
func indexHeader(row []string) colIndex {
	cols := make(colIndex)

	for i, cell := range row {
		name := strings.TrimSpace(cell)
		for _, known := range []string{colAccount, colType, colAmount, colDate} {
			if strings.EqualFold(name, known) {
				cols[known] = i
			}
		}
	}

	return cols
}

func parseRecord(cols colIndex, record []string) (ledger.PostParams, error) {
	var params ledger.PostParams

	accountID, err := uuid.Parse(cellValue(record, cols, colAccount))
	if err != nil {
		return params, fmt.Errorf("invalid idUserAccount: %w", err)
	}

	typ, err := transaction.ParseType(cellValue(record, cols, colType))
	if err != nil {
		return params, err
	}

	amount, err := parseAmount(cellValue(record, cols, colAmount))
	if err != nil {
		return params, fmt.Errorf("invalid amount %q", cellValue(record, cols, colAmount))
	}

	if amount.IsNegative() {
		return params, transaction.ErrInvalidAmount
	}

	date, err := parseDate(cellValue(record, cols, colDate))
	if err != nil {
		return params, err
	}

	return ledger.PostParams{
		AccountID:     accountID,
		Type:          typ,
		Amount:        amount,
		EffectiveDate: date,
	}, nil
}

// parseDate returns the zero Date for an empty cell.
func parseDate(s string) (transaction.Date, error) {
	if s == "" {
		return transaction.Date{}, nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return transaction.NewDate(t.Year(), t.Month(), t.Day()), nil
		}
	}

	return transaction.Date{}, fmt.Errorf("invalid effectiveDate %q", s)
}

// cellValue returns the trimmed cell for a column, or "" when the column
// is absent or the row is short.
func cellValue(record []string, cols colIndex, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}

	return strings.TrimSpace(record[idx])
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}

	return true
}
