package main

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/popanda44/seedvalidator-finance/pkg/forecast"
)

var timestampLayouts = []string{time.RFC3339, "2006-01-02", "2006-01"}

// readObservations decodes a series as JSON or CSV. The format follows the
// file extension when name has one, otherwise the first non-space byte.
func readObservations(r io.Reader, name string) ([]forecast.Observation, error) {
	br := bufio.NewReader(r)

	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return decodeJSON(br)
	case ".csv":
		return decodeCSV(br)
	}

	peek, err := br.Peek(64)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	trimmed := bytes.TrimSpace(peek)
	if len(trimmed) == 0 {
		return nil, errors.New("input is empty")
	}
	if trimmed[0] == '[' {
		return decodeJSON(br)
	}
	return decodeCSV(br)
}

func decodeJSON(r io.Reader) ([]forecast.Observation, error) {
	var observations []forecast.Observation
	if err := json.NewDecoder(r).Decode(&observations); err != nil {
		return nil, fmt.Errorf("invalid JSON series: %w", err)
	}
	return observations, nil
}

func decodeCSV(r io.Reader) ([]forecast.Observation, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	var observations []forecast.Observation
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid CSV series: %w", err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "timestamp") {
			continue
		}

		ts, err := parseTimestamp(record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid value %q", line, record[1])
		}
		observations = append(observations, forecast.Observation{Timestamp: ts, Value: value})
	}
	return observations, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

func writeResult(w io.Writer, format string, v interface{}) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q (want json or yaml)", format)
	}
}
