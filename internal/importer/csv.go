// Package importer bulk-loads usage entries from CSV files.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/jgoulah/ecobuddy/pkg/models"
)

// Row is one usage line from a CSV file. Device holds an ID or a name.
type Row struct {
	Line   int
	Device string
	Date   time.Time
	Hours  float64
}

// RowError is a row that could not be imported
type RowError struct {
	Row Row
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Row.Line, e.Err)
}

// Recorder upserts a single usage entry
type Recorder interface {
	RecordUsage(ctx context.Context, deviceID int, date time.Time, hours float64) error
}

// Result summarises an import run
type Result struct {
	Imported int
	Failed   []RowError
}

// ParseCSV reads rows with a header naming device, date and hours columns.
// Unparseable rows are returned as RowErrors rather than failing the file.
func ParseCSV(r io.Reader) ([]Row, []RowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading CSV header: %w", err)
	}

	deviceCol, err := findColumn(header, "device", "device", "device_id", "device_name")
	if err != nil {
		return nil, nil, err
	}
	dateCol, err := findColumn(header, "date", "date")
	if err != nil {
		return nil, nil, err
	}
	hoursCol, err := findColumn(header, "hour", "hours", "hours_used")
	if err != nil {
		return nil, nil, err
	}

	var rows []Row
	var rowErrs []RowError
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, nil, fmt.Errorf("reading CSV row: %w", err)
		}

		row := Row{Line: line}
		if len(record) <= deviceCol || len(record) <= dateCol || len(record) <= hoursCol {
			rowErrs = append(rowErrs, RowError{Row: row, Err: fmt.Errorf("missing columns")})
			continue
		}

		row.Device = strings.TrimSpace(record[deviceCol])
		if row.Device == "" {
			rowErrs = append(rowErrs, RowError{Row: row, Err: fmt.Errorf("device is required")})
			continue
		}

		row.Date, err = time.Parse(models.DateLayout, strings.TrimSpace(record[dateCol]))
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: row, Err: fmt.Errorf("invalid date %q", record[dateCol])})
			continue
		}

		row.Hours, err = strconv.ParseFloat(strings.TrimSpace(record[hoursCol]), 64)
		if err != nil || !(row.Hours > 0) {
			rowErrs = append(rowErrs, RowError{Row: row, Err: fmt.Errorf("hours must be a number greater than 0, got %q", record[hoursCol])})
			continue
		}

		rows = append(rows, row)
	}

	return rows, rowErrs, nil
}

// findColumn locates a column by exact name, falling back to names
// containing fragment. More than one match at either step is an error.
func findColumn(header []string, fragment string, names ...string) (int, error) {
	normalized := make([]string, len(header))
	for i, col := range header {
		normalized[i] = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(col)), " ", "_")
	}

	match := func(ok func(string) bool) (int, error) {
		found := -1
		for i, col := range normalized {
			if !ok(col) {
				continue
			}
			if found != -1 {
				return -1, fmt.Errorf("ambiguous %s column in CSV: %q and %q", fragment, header[found], header[i])
			}
			found = i
		}
		return found, nil
	}

	col, err := match(func(col string) bool { return slices.Contains(names, col) })
	if err != nil || col != -1 {
		return col, err
	}
	col, err = match(func(col string) bool { return strings.Contains(col, fragment) })
	if err != nil {
		return -1, err
	}
	if col == -1 {
		return -1, fmt.Errorf("could not find required columns (device, date and hours) in CSV. Header: %v", header)
	}
	return col, nil
}

// Import records rows against known devices, waiting on limiter before
// each request. A failed row does not stop the run; a cancelled context does.
func Import(ctx context.Context, rec Recorder, devices []models.Device, rows []Row, limiter *rate.Limiter, log logrus.FieldLogger) (Result, error) {
	byID := make(map[string]models.Device, len(devices))
	byName := make(map[string]models.Device, len(devices))
	for _, d := range devices {
		byID[strconv.Itoa(d.ID)] = d
		byName[strings.ToLower(d.Name)] = d
	}

	var result Result
	for _, row := range rows {
		d, ok := byID[row.Device]
		if !ok {
			d, ok = byName[strings.ToLower(row.Device)]
		}
		if !ok {
			result.Failed = append(result.Failed, RowError{Row: row, Err: fmt.Errorf("unknown device %q", row.Device)})
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			return result, fmt.Errorf("waiting for rate limiter: %w", err)
		}

		if err := rec.RecordUsage(ctx, d.ID, row.Date, row.Hours); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed = append(result.Failed, RowError{Row: row, Err: err})
			continue
		}

		log.WithFields(logrus.Fields{
			"line":      row.Line,
			"device_id": d.ID,
			"date":      row.Date.Format(models.DateLayout),
		}).Debug("usage imported")
		result.Imported++
	}

	return result, nil
}
