/*
 * Email Extractor - Input Module
 *
 * Author: Dr.Anach
 * Telegram: @dranach
 */

package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const maxInputFileSize = 100 * 1024 * 1024 // 100MB limit

// LoadSites reads site entries from a text file (one per line), a CSV file
// or a Google Sheets link. Blank entries are kept so positions line up with
// the source.
func LoadSites(ctx context.Context, source, column string, client *http.Client) ([]string, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return loadRemoteCSV(ctx, source, column, client)
	}
	if strings.EqualFold(filepath.Ext(source), ".csv") {
		file, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", source, err)
		}
		defer file.Close()
		return ReadCSVColumn(file, column)
	}
	return LoadLinesFromFile(source)
}

// LoadLinesFromFile loads lines from a given file
func LoadLinesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	// Check file size to prevent memory exhaustion
	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if stat.Size() > maxInputFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (max: %d)", stat.Size(), maxInputFileSize)
	}

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	return lines, scanner.Err()
}

// ReadCSVColumn returns the values of the named column (case-insensitive).
// An empty column name selects the first column.
func ReadCSVColumn(r io.Reader, column string) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("csv input is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	idx := 0
	if column != "" {
		idx = -1
		for i, name := range header {
			if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")), column) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("column %q not found (have: %s)", column, strings.Join(header, ", "))
		}
	}

	var values []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row: %w", err)
		}
		if idx < len(record) {
			values = append(values, strings.TrimSpace(record[idx]))
		} else {
			values = append(values, "")
		}
	}
	return values, nil
}

// SheetCSVURL turns a Google Sheets link into its CSV export link. Other
// URLs are returned unchanged.
func SheetCSVURL(sheetURL string) (string, error) {
	if !strings.Contains(sheetURL, "docs.google.com/spreadsheets") {
		return sheetURL, nil
	}
	_, rest, ok := strings.Cut(sheetURL, "/d/")
	if !ok {
		return "", fmt.Errorf("invalid Google Sheet URL: %s", sheetURL)
	}
	id, _, _ := strings.Cut(rest, "/")
	id, _, _ = strings.Cut(id, "?")
	if id == "" {
		return "", fmt.Errorf("invalid Google Sheet URL: %s", sheetURL)
	}
	return "https://docs.google.com/spreadsheets/d/" + id + "/export?format=csv", nil
}

func loadRemoteCSV(ctx context.Context, source, column string, client *http.Client) ([]string, error) {
	csvURL, err := SheetCSVURL(source)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, csvURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", csvURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download %s: status %d", csvURL, resp.StatusCode)
	}
	return ReadCSVColumn(io.LimitReader(resp.Body, maxInputFileSize), column)
}
