// Package export writes pipeline records to CSV and to database sinks.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"

	"github.com/spf13/cast"

	"github.com/briangreenhill/rinkjoin/record"
)

// WriteCSV writes a header row of rec's keys followed by one row of its
// values, both in key order.
func WriteCSV(w io.Writer, rec *record.Record) error {
	keys := rec.Keys()
	row := make([]string, len(keys))
	for i, k := range keys {
		v, _ := rec.Get(k)
		row[i] = cell(v)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(keys); err != nil {
		return err
	}
	if err := cw.Write(row); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// cell renders scalars plainly and nested values as JSON.
func cell(v any) string {
	switch v.(type) {
	case nil:
		return ""
	case map[string]any, []any, *record.Record:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		b, _ := json.Marshal(v)
		return string(b)
	}
	return s
}
