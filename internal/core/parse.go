package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// RequiredColumns are the header names an uploaded CSV must contain,
// matched case-sensitively. Column order is free and extra columns
// are ignored.
var RequiredColumns = []string{"Equipment Name", "Type", "Flowrate", "Pressure", "Temperature"}

// ParseError describes a rejected upload. Row is the 1-based data row
// (0 when the header itself is at fault); Column names the offending
// column where one can be identified.
type ParseError struct {
	Row    int
	Column string
	Cause  string
}

func (e *ParseError) Error() string {
	switch {
	case e.Row > 0 && e.Column != "":
		return fmt.Sprintf("row %d, column %q: %s", e.Row, e.Column, e.Cause)
	case e.Row > 0:
		return fmt.Sprintf("row %d: %s", e.Row, e.Cause)
	case e.Column != "":
		return fmt.Sprintf("column %q: %s", e.Column, e.Cause)
	default:
		return e.Cause
	}
}

// ParseCSV reads tabular equipment data and returns its rows in file order.
// The first row is the header. A record either parses fully or the whole
// upload is rejected; no partial records are returned. A file with a valid
// header but no data rows is rejected as well.
func ParseCSV(r io.Reader) ([]EquipmentRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Cause: "file is empty"}
	}
	if err != nil {
		return nil, &ParseError{Cause: fmt.Sprintf("invalid CSV header: %v", err)}
	}

	// Files exported on Windows often carry a UTF-8 BOM.
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, name := range RequiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &ParseError{
			Column: strings.Join(missing, ", "),
			Cause:  "missing required column(s)",
		}
	}

	var records []EquipmentRecord
	for row := 1; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Row: row, Cause: fmt.Sprintf("malformed row: %v", err)}
		}

		name := strings.TrimSpace(fields[cols["Equipment Name"]])
		if name == "" {
			return nil, &ParseError{Row: row, Column: "Equipment Name", Cause: "value is empty"}
		}

		rec := EquipmentRecord{
			Name: name,
			Type: strings.TrimSpace(fields[cols["Type"]]),
		}

		for _, nc := range []struct {
			column string
			dst    *float64
		}{
			{"Flowrate", &rec.Flowrate},
			{"Pressure", &rec.Pressure},
			{"Temperature", &rec.Temperature},
		} {
			raw := strings.TrimSpace(fields[cols[nc.column]])
			if raw == "" {
				return nil, &ParseError{Row: row, Column: nc.column, Cause: "value is empty"}
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, &ParseError{Row: row, Column: nc.column, Cause: fmt.Sprintf("%q is not numeric", raw)}
			}
			// ParseFloat accepts NaN and Inf literals, which would
			// poison the summary and cannot be serialized to JSON.
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &ParseError{Row: row, Column: nc.column, Cause: fmt.Sprintf("%q is not a finite number", raw)}
			}
			*nc.dst = v
		}

		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, &ParseError{Cause: "no data rows found"}
	}

	return records, nil
}
