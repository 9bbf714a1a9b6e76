package source

import "errors"

var (
	// ErrMalformedDocument is returned when a document cannot be decoded into an attempt.
	ErrMalformedDocument = errors.New("malformed attempt document")
	// ErrInvalidTimestamp is returned when a timestamp field has an unsupported shape.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	// ErrSheetNotFound is returned when the configured sheet is missing from a workbook.
	ErrSheetNotFound = errors.New("sheet not found")
	// ErrOpenWorkbook is returned when the workbook cannot be read.
	ErrOpenWorkbook = errors.New("failed to open workbook")
)
