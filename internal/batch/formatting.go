package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/pipeline"
)

// Write serializes the results of a batch in format f. Nil results belong
// to files that failed and are skipped. JSON keeps the slots as null so
// that indices line up with names.
func Write(w io.Writer, names []string, results []*pipeline.Result, f pipeline.Format, lang string) error {
	if len(names) != len(results) {
		return errs.New(errs.CodeInternal, "batch has %d names for %d results", len(names), len(results))
	}
	switch f {
	case pipeline.FormatJSON:
		s, err := pipeline.ToJSONBatch(results)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, s+"\n")
		return err
	case pipeline.FormatCSV:
		return writeCSV(w, names, results)
	}
	for i, res := range results {
		if res == nil {
			continue
		}
		if f == pipeline.FormatYAML {
			_, _ = io.WriteString(w, "---\n")
		} else {
			_, _ = fmt.Fprintf(w, "== %s ==\n", names[i])
		}
		if err := pipeline.Write(w, res, f, lang); err != nil {
			return err
		}
	}
	return nil
}

// writeCSV prefixes the single-layout rows with a file column and emits
// one shared header.
func writeCSV(w io.Writer, names []string, results []*pipeline.Result) error {
	cw := csv.NewWriter(w)
	header := false
	for i, res := range results {
		if res == nil {
			continue
		}
		s, err := pipeline.ToCSV(res.Layout)
		if err != nil {
			return err
		}
		rows, err := csv.NewReader(strings.NewReader(s)).ReadAll()
		if err != nil {
			return err
		}
		for j, row := range rows {
			if j == 0 {
				if header {
					continue
				}
				header = true
				_ = cw.Write(append([]string{"file"}, row...))
				continue
			}
			_ = cw.Write(append([]string{names[i]}, row...))
		}
	}
	cw.Flush()
	return cw.Error()
}
