// Package export writes fetched records to CSV files, one per object type.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/WessleyAI/vaarweggraph/engine/domain"
)

// Path returns the file WriteCSV writes for an object type.
func Path(prefix string, t domain.ObjectType) string {
	return prefix + "_" + string(t) + ".csv"
}

// WriteCSV writes records to {prefix}_{type}.csv with a header of the sorted
// union of their keys. Nothing is written for an empty slice. It returns the
// path written, or "" when nothing was written.
func WriteCSV(prefix string, t domain.ObjectType, records []domain.Record) (string, error) {
	if len(records) == 0 {
		return "", nil
	}
	path := Path(prefix, t)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("export %s: %w", t, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("export %s: %w", t, err)
	}
	defer f.Close()

	header := Columns(records)
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("export %s: %w", t, err)
	}
	row := make([]string, len(header))
	for _, rec := range records {
		for i, col := range header {
			row[i] = format(rec[col])
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("export %s: %w", t, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("export %s: %w", t, err)
	}
	return path, f.Close()
}

// WriteAll exports every object type of a dataset and returns the files
// written.
func WriteAll(prefix string, data domain.Dataset) ([]string, error) {
	var paths []string
	for _, t := range domain.AllObjectTypes {
		p, err := WriteCSV(prefix, t, data[t])
		if err != nil {
			return paths, err
		}
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

// Columns is the sorted union of the keys of records.
func Columns(records []domain.Record) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	slices.Sort(cols)
	return cols
}

func format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}
