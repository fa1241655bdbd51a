package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/popanda44/seedvalidator-finance/pkg/forecast"
)

func TestReadObservations_CSV(t *testing.T) {
	input := "timestamp,value\n2024-01-01,100\n2024-02, 110.5\n2024-03-01T00:00:00Z,121\n"

	observations, err := readObservations(strings.NewReader(input), "series.csv")
	require.NoError(t, err)
	require.Len(t, observations, 3)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), observations[0].Timestamp)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), observations[1].Timestamp)
	assert.Equal(t, 110.5, observations[1].Value)
	assert.Equal(t, 121.0, observations[2].Value)
}

func TestReadObservations_SniffsFormat(t *testing.T) {
	jsonInput := `  [{"timestamp":"2024-01-01T00:00:00Z","value":5},{"timestamp":"2024-02-01T00:00:00Z","value":7}]`
	observations, err := readObservations(strings.NewReader(jsonInput), "")
	require.NoError(t, err)
	require.Len(t, observations, 2)
	assert.Equal(t, 7.0, observations[1].Value)

	observations, err = readObservations(strings.NewReader("2024-01-01,3\n"), "")
	require.NoError(t, err)
	require.Len(t, observations, 1)
	assert.Equal(t, 3.0, observations[0].Value)
}

func TestReadObservations_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		file    string
		wantErr string
	}{
		{name: "empty", input: "   \n", wantErr: "input is empty"},
		{name: "bad timestamp", input: "yesterday,10\n", wantErr: "line 1: invalid timestamp"},
		{name: "bad value", input: "timestamp,value\n2024-01-01,lots\n", wantErr: "line 2: invalid value"},
		{name: "wrong field count", input: "2024-01-01,1,2\n", wantErr: "invalid CSV series"},
		{name: "bad json", input: `[{"value":`, file: "series.json", wantErr: "invalid JSON series"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := readObservations(strings.NewReader(tc.input), tc.file)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestWriteResult(t *testing.T) {
	scenarios := forecast.RunwayScenarios{Optimistic: 12, Base: 10, Pessimistic: 9}

	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, "yaml", scenarios))

	var decoded map[string]float64
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 10.0, decoded["base"])

	buf.Reset()
	require.NoError(t, writeResult(&buf, "JSON", scenarios))
	assert.Contains(t, buf.String(), `"optimistic": 12`)

	assert.Error(t, writeResult(&buf, "xml", scenarios))
}
