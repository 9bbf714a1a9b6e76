// Package source parses attempt records coming from outside the engine:
// schemaless document dumps and spreadsheet exports.
package source

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	model "github.com/okian/tally/internal/domain/model"
)

// document mirrors the field names used by the original document store.
type document struct {
	ID        string    `mapstructure:"id"`
	UserID    string    `mapstructure:"userId"`
	SubjectID string    `mapstructure:"subjectOrCardId"`
	Category  string    `mapstructure:"category"`
	Score     int       `mapstructure:"score"`
	Total     int       `mapstructure:"total"`
	Answers   []bool    `mapstructure:"answers"`
	Timestamp time.Time `mapstructure:"timestamp"`
}

var (
	timeType = reflect.TypeOf(time.Time{})
	intKinds = map[reflect.Kind]bool{reflect.Int: true, reflect.Int32: true, reflect.Int64: true}
)

// DecodeDocument converts one untyped document into an attempt. Only the
// shape is checked here; semantic checks are left to model.Attempt.Validate.
func DecodeDocument(doc map[string]any) (model.Attempt, error) {
	if doc == nil {
		return model.Attempt{}, fmt.Errorf("%w: nil document", ErrMalformedDocument)
	}

	var out document
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			timestampHook,
			wholeNumberHook,
		),
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return model.Attempt{}, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	if err := decoder.Decode(doc); err != nil {
		return model.Attempt{}, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}

	return model.Attempt{
		ID:        out.ID,
		UserID:    out.UserID,
		SubjectID: out.SubjectID,
		Category:  out.Category,
		Score:     out.Score,
		Total:     out.Total,
		Answers:   out.Answers,
		TS:        out.Timestamp,
	}, nil
}

// DecodeDocuments decodes every document it can. Failures are reported with
// the index of the offending document and do not stop the rest.
func DecodeDocuments(docs []map[string]any) ([]model.Attempt, []error) {
	attempts := make([]model.Attempt, 0, len(docs))
	var errs []error
	for i, doc := range docs {
		a, err := DecodeDocument(doc)
		if err != nil {
			errs = append(errs, fmt.Errorf("document %d: %w", i, err))
			continue
		}
		attempts = append(attempts, a)
	}
	return attempts, errs
}

// ReadDocuments reads a JSON array of documents.
func ReadDocuments(r io.Reader) ([]map[string]any, error) {
	var docs []map[string]any
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	return docs, nil
}

// timestampHook accepts RFC3339 strings, unix seconds and
// {seconds, nanoseconds} maps as produced by document store exports.
func timestampHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != timeType {
		return data, nil
	}
	switch v := data.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v, nil
	case string:
		return parseTimestamp(v)
	case float64:
		return unixSeconds(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTimestamp, v)
		}
		return unixSeconds(f), nil
	case int:
		return time.Unix(int64(v), 0).UTC(), nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	case map[string]any:
		return timestampFromMap(v)
	}
	return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidTimestamp, data)
}

// wholeNumberHook refuses fractional values for integer fields instead of
// truncating them.
func wholeNumberHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if !intKinds[to.Kind()] {
		return data, nil
	}
	if f, ok := data.(float64); ok && f != math.Trunc(f) {
		return nil, fmt.Errorf("expected a whole number, got %v", f)
	}
	return data, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return unixSeconds(f), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

func timestampFromMap(m map[string]any) (time.Time, error) {
	sec, ok := number(m, "seconds", "_seconds")
	if !ok {
		return time.Time{}, fmt.Errorf("%w: missing seconds", ErrInvalidTimestamp)
	}
	nsec, _ := number(m, "nanoseconds", "_nanoseconds")
	return time.Unix(int64(sec), int64(nsec)).UTC(), nil
}

func number(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		}
	}
	return 0, false
}

func unixSeconds(f float64) time.Time {
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
}
