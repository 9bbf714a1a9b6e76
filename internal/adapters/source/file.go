package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	model "github.com/okian/tally/internal/domain/model"
)

// LoadFile reads attempts from a JSON document dump or an XLSX export,
// chosen by extension. Per-record problems are returned as messages next to
// the attempts that did parse.
func LoadFile(path string) ([]model.Attempt, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		res, err := ReadWorkbook(f, DefaultWorkbookOptions())
		if err != nil {
			return nil, nil, err
		}
		return res.Attempts, res.Errors, nil
	case ".json":
		docs, err := ReadDocuments(f)
		if err != nil {
			return nil, nil, err
		}
		attempts, errs := DecodeDocuments(docs)
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		return attempts, msgs, nil
	}
	return nil, nil, fmt.Errorf("unsupported file type %q: want .json or .xlsx", filepath.Ext(path))
}
