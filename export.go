/*
 * Email Extractor - Export Module
 *
 * Author: Dr.Anach
 * Telegram: @dranach
 */

package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteResultsCSV writes a Website,Email header followed by one line per row.
func WriteResultsCSV(w io.Writer, rows []ResultRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Website", "Email"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{row.Site, row.Email}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// SaveResultsCSV writes rows to path, creating parent directories as needed.
func SaveResultsCSV(path string, rows []ResultRow) error {
	if err := EnsureDirectory(filepath.Dir(path)); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteResultsCSV(file, rows); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}

// EnsureDirectory creates the directory if it does not exist
func EnsureDirectory(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
