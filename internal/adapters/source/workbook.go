package source

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	model "github.com/okian/tally/internal/domain/model"
	"github.com/xuri/excelize/v2"
)

// WorkbookOptions selects the sheet and the column holding each attempt field.
// An empty column means the field is not present in the export.
type WorkbookOptions struct {
	Sheet           string // defaults to the first sheet
	StartRow        int    // 1-based, rows above it are headers
	IDColumn        string
	UserColumn      string
	SubjectColumn   string
	CategoryColumn  string
	ScoreColumn     string
	TotalColumn     string
	AnswersColumn   string // comma separated 1/0 or true/false
	TimestampColumn string // RFC3339 text or an Excel date serial
}

// DefaultWorkbookOptions returns the column layout written by the exporter:
// id, user, subject, category, score, total, answers, timestamp.
func DefaultWorkbookOptions() WorkbookOptions {
	return WorkbookOptions{
		StartRow:        2,
		IDColumn:        "A",
		UserColumn:      "B",
		SubjectColumn:   "C",
		CategoryColumn:  "D",
		ScoreColumn:     "E",
		TotalColumn:     "F",
		AnswersColumn:   "G",
		TimestampColumn: "H",
	}
}

// ImportResult holds the attempts parsed from a workbook and the rows that
// could not be parsed.
type ImportResult struct {
	Attempts []model.Attempt
	Rows     int
	Errors   []string
}

// ReadWorkbook parses an XLSX export. Bad rows are recorded in the result and
// do not abort the import.
func ReadWorkbook(r io.Reader, opts WorkbookOptions) (ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("%w: %w", ErrOpenWorkbook, err)
	}
	defer func() { _ = f.Close() }()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return ImportResult{}, ErrSheetNotFound
		}
		sheet = sheets[0]
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return ImportResult{}, fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}

	cols, err := opts.columns()
	if err != nil {
		return ImportResult{}, err
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return ImportResult{}, fmt.Errorf("%w: %w", ErrOpenWorkbook, err)
	}

	start := opts.StartRow
	if start < 1 {
		start = 1
	}
	result := ImportResult{Errors: make([]string, 0)}
	for i, row := range rows {
		if i < start-1 || blank(row) {
			continue
		}
		result.Rows++
		a, err := cols.parse(row)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		result.Attempts = append(result.Attempts, a)
	}
	return result, nil
}

// WriteWorkbook writes attempts in the DefaultWorkbookOptions layout.
func WriteWorkbook(w io.Writer, attempts []model.Attempt) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Sheet1"
	header := []any{"id", "user", "subject", "category", "score", "total", "answers", "timestamp"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i := range attempts {
		a := &attempts[i]
		outcomes := make([]string, len(a.Answers))
		for j, ok := range a.Answers {
			outcomes[j] = strconv.FormatBool(ok)
		}
		row := []any{
			a.ID, a.UserID, a.SubjectID, a.Category, a.Score, a.Total,
			strings.Join(outcomes, ","), a.TS.UTC().Format(time.RFC3339Nano),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}

// columnSet holds zero-based column indexes, -1 for absent columns.
type columnSet struct {
	id, user, subject, category, score, total, answers, ts int
}

func (o WorkbookOptions) columns() (columnSet, error) {
	var (
		cs  columnSet
		err error
	)
	for _, c := range []struct {
		name string
		dst  *int
	}{
		{o.IDColumn, &cs.id},
		{o.UserColumn, &cs.user},
		{o.SubjectColumn, &cs.subject},
		{o.CategoryColumn, &cs.category},
		{o.ScoreColumn, &cs.score},
		{o.TotalColumn, &cs.total},
		{o.AnswersColumn, &cs.answers},
		{o.TimestampColumn, &cs.ts},
	} {
		if *c.dst, err = columnIndex(c.name); err != nil {
			return columnSet{}, err
		}
	}
	return cs, nil
}

func columnIndex(name string) (int, error) {
	if name == "" {
		return -1, nil
	}
	n, err := excelize.ColumnNameToNumber(name)
	if err != nil {
		return -1, fmt.Errorf("column %q: %w", name, err)
	}
	return n - 1, nil
}

func (cs columnSet) parse(row []string) (model.Attempt, error) {
	cell := func(idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	score, err := cellInt(cell(cs.score))
	if err != nil {
		return model.Attempt{}, fmt.Errorf("score: %w", err)
	}
	total, err := cellInt(cell(cs.total))
	if err != nil {
		return model.Attempt{}, fmt.Errorf("total: %w", err)
	}
	answers, err := cellAnswers(cell(cs.answers))
	if err != nil {
		return model.Attempt{}, fmt.Errorf("answers: %w", err)
	}
	ts, err := cellTime(cell(cs.ts))
	if err != nil {
		return model.Attempt{}, fmt.Errorf("timestamp: %w", err)
	}

	return model.Attempt{
		ID:        cell(cs.id),
		UserID:    cell(cs.user),
		SubjectID: cell(cs.subject),
		Category:  cell(cs.category),
		Score:     score,
		Total:     total,
		Answers:   answers,
		TS:        ts,
	}, nil
}

func cellInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("not a whole number: %q", s)
	}
	return int(f), nil
}

func cellAnswers(s string) ([]bool, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]bool, 0, len(parts))
	for _, p := range parts {
		b, err := strconv.ParseBool(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("bad outcome %q", p)
		}
		out = append(out, b)
	}
	return out, nil
}

// cellTime reads RFC3339 text or an Excel date serial in the 1900 system.
func cellTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	ts, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrInvalidTimestamp, err)
	}
	return ts, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
