package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CSVParser handles spreadsheet exports with the columns
// level,task[,ordered]. Level 0 is the title; level N > 0 is a list item
// at depth N. The header row is optional.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	if len(records) > 0 && isCSVHeader(records[0]) {
		records = records[1:]
	}

	var w outlineWriter
	counters := map[int]int{}
	for i, row := range records {
		if len(row) < 2 {
			return nil, fmt.Errorf("csv row %d: expected level and task columns", i+1)
		}
		level, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil || level < 0 {
			return nil, fmt.Errorf("csv row %d: invalid level %q", i+1, row[0])
		}
		task := strings.TrimSpace(row[1])
		if task == "" {
			continue
		}
		if level == 0 {
			w.heading(1, task)
			continue
		}

		for d := range counters {
			if d > level {
				delete(counters, d)
			}
		}
		ordinal := 0
		if len(row) > 2 && isTruthy(row[2]) {
			counters[level]++
			ordinal = counters[level]
		}
		w.item(level, ordinal, task)
	}

	out := w.String()
	return &Document{Title: titleOf(out, baseTitle(filename)), Text: out}, nil
}

func isCSVHeader(row []string) bool {
	if len(row) == 0 {
		return false
	}
	_, err := strconv.Atoi(strings.TrimSpace(row[0]))
	return err != nil
}

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "x":
		return true
	}
	return false
}
