/*
 * Email Extractor - Logging
 *
 * Author: Dr.Anach
 * Telegram: @dranach
 */

package main

import (
	"io"
	"os"

	"github.com/phuslu/log"
)

// NewLogger builds the process logger. Console output goes to stderr so it
// never interleaves with the progress line on stdout; log_file adds a JSON
// file sink.
func NewLogger(config Config, console io.Writer) *log.Logger {
	if console == nil {
		console = os.Stderr
	}

	var primary log.Writer
	if config.LogFormat == "json" {
		primary = &log.IOWriter{Writer: console}
	} else {
		primary = &log.ConsoleWriter{
			Writer:         console,
			ColorOutput:    isTerminal(console),
			QuoteString:    true,
			EndWithMessage: true,
		}
	}

	writer := primary
	if config.LogFile != "" {
		writer = &log.MultiEntryWriter{
			primary,
			&log.FileWriter{
				Filename:     config.LogFile,
				MaxSize:      50 * 1024 * 1024,
				MaxBackups:   3,
				EnsureFolder: true,
			},
		}
	}

	return &log.Logger{
		Level:      log.ParseLevel(config.LogLevel),
		TimeFormat: "15:04:05",
		Writer:     writer,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return log.IsTerminal(f.Fd())
}
