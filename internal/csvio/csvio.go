// Package csvio reads and writes trade datasets in the upload CSV format:
//
//	State,GL_Premium_Low,GL_Premium_High,GL_Savings,GL_Competitiveness,WC_Rate_5437,WC_Rate_5645
//
// The workers' comp class codes come from the header, so a trade may carry
// one or two WC columns with any numeric codes.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/couchcryptid/insurance-maps/internal/domain"
	"github.com/shopspring/decimal"
)

// MaxUploadBytes caps the size of an uploaded CSV file.
const MaxUploadBytes = 5 << 20

const wcPrefix = "WC_Rate_"

// DefaultClassCodes are the WC codes of the carpenter dataset.
var DefaultClassCodes = []string{"5437", "5645"}

var baseHeader = []string{"State", "GL_Premium_Low", "GL_Premium_High", "GL_Savings", "GL_Competitiveness"}

// ErrEmpty is returned when the input has no header row.
var ErrEmpty = errors.New("csv file is empty")

var (
	hundred  = decimal.NewFromInt(100)
	thousand = decimal.NewFromInt(1000)
)

// RowError reports a problem with one line of the file. Line 1 is the header.
type RowError struct {
	Line int
	Msg  string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func rowErrorf(line int, format string, args ...any) *RowError {
	return &RowError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Header returns the header row for the given WC class codes.
func Header(classCodes []string) []string {
	h := append([]string(nil), baseHeader...)
	for _, code := range classCodes {
		h = append(h, wcPrefix+code)
	}
	return h
}

// Parse reads a full dataset for trade. It stops at the first invalid row.
// Rows with an empty State cell are skipped.
func Parse(r io.Reader, trade domain.Trade) (*domain.Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	codes, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	ds := domain.NewDataset(trade, codes...)
	firstSeen := make(map[domain.StateCode]int)
	width := len(baseHeader) + len(codes)

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)

		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		rec, rowErr := parseRow(row, line, width, codes)
		if rowErr != nil {
			return nil, rowErr
		}
		if prev, dup := firstSeen[rec.State]; dup {
			return nil, rowErrorf(line, "duplicate state %s (first seen on line %d)", rec.State, prev)
		}
		firstSeen[rec.State] = line
		ds.Records[rec.State] = rec
	}
	return ds, nil
}

func parseHeader(header []string) ([]string, error) {
	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = strings.TrimSpace(h)
	}
	if len(cells) > 0 {
		cells[0] = strings.TrimPrefix(cells[0], "\ufeff")
	}

	invalid := &RowError{Line: 1, Msg: "invalid header, expected: " + strings.Join(Header(DefaultClassCodes), ", ")}
	if len(cells) < len(baseHeader)+1 || len(cells) > len(baseHeader)+2 {
		return nil, invalid
	}
	for i, want := range baseHeader {
		if cells[i] != want {
			return nil, invalid
		}
	}

	var codes []string
	for _, c := range cells[len(baseHeader):] {
		code, ok := strings.CutPrefix(c, wcPrefix)
		if !ok {
			return nil, invalid
		}
		if _, err := domain.ParseMetric("wcRate", code); err != nil {
			return nil, rowErrorf(1, "invalid WC class code %q", code)
		}
		for _, seen := range codes {
			if seen == code {
				return nil, rowErrorf(1, "duplicate WC class code %s", code)
			}
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func parseRow(row []string, line, width int, codes []string) (domain.StateRecord, error) {
	var rec domain.StateRecord
	if len(row) != width {
		return rec, rowErrorf(line, "expected %d columns, found %d", width, len(row))
	}

	state, ok := domain.ParseStateCode(row[0])
	if !ok {
		return rec, rowErrorf(line, "invalid state code %q", strings.TrimSpace(row[0]))
	}

	nums := make([]decimal.Decimal, width)
	blank := make([]bool, width)
	for i := 1; i < width; i++ {
		cell := strings.TrimSpace(row[i])
		// A blank WC cell means the state has no rate for that class.
		if cell == "" && i >= len(baseHeader) {
			blank[i] = true
			continue
		}
		d, err := decimal.NewFromString(cell)
		if err != nil {
			return rec, rowErrorf(line, "column %d must be numeric", i+1)
		}
		nums[i] = d
	}
	low, high, savings, comp := nums[1], nums[2], nums[3], nums[4]

	if !between(low, decimal.Zero, hundred) || !between(high, decimal.Zero, hundred) {
		return rec, rowErrorf(line, "GL premium values must be between 0 and 100")
	}
	if low.GreaterThan(high) {
		return rec, rowErrorf(line, "GL premium low cannot be greater than high")
	}
	if !between(savings, decimal.Zero, hundred) {
		return rec, rowErrorf(line, "GL savings must be between 0 and 100")
	}
	if !comp.IsInteger() || !between(comp, decimal.Zero, hundred) {
		return rec, rowErrorf(line, "GL competitiveness must be a whole number between 0 and 100")
	}

	rates := make(map[string]decimal.Decimal, len(codes))
	for i, code := range codes {
		if blank[len(baseHeader)+i] {
			continue
		}
		rate := nums[len(baseHeader)+i]
		if !between(rate, decimal.Zero, thousand) {
			return rec, rowErrorf(line, "WC rates must be between 0 and 1000")
		}
		rates[code] = rate
	}

	return domain.StateRecord{
		State:           state,
		PremiumLow:      low,
		PremiumHigh:     high,
		Savings:         savings,
		Competitiveness: int(comp.IntPart()),
		WCRates:         rates,
	}, nil
}

func between(d, lo, hi decimal.Decimal) bool {
	return d.GreaterThanOrEqual(lo) && d.LessThanOrEqual(hi)
}

// Write emits ds in upload format, rows ordered by state code. A WC rate
// the record lacks is written as an empty cell.
func Write(w io.Writer, ds *domain.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(ds.ClassCodes)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range ds.Sorted() {
		row := []string{
			string(rec.State),
			rec.PremiumLow.String(),
			rec.PremiumHigh.String(),
			rec.Savings.String(),
			strconv.Itoa(rec.Competitiveness),
		}
		for _, code := range ds.ClassCodes {
			if rate, ok := rec.WCRates[code]; ok {
				row = append(row, rate.String())
			} else {
				row = append(row, "")
			}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", rec.State, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
