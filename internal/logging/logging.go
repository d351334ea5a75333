// Package logging provides the category-gated diagnostic logger shared
// by every Sari package. Like cmd/lci's debug package it never
// writes to stdout in MCP/stdio mode, since a stray byte on stdout
// corrupts the JSON-RPC or MCP framing.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StdioMode suppresses all diagnostic output once a stdio transport
// (MCP or the line-framed gateway) owns stdout. Set once at startup.
var StdioMode = false

// Verbose enables Debug-level output even outside of an env override.
var Verbose = false

var (
	mu     sync.Mutex
	output io.Writer
	file   *os.File
)

// SetStdioMode toggles output suppression for stdio transports.
func SetStdioMode(enabled bool) {
	StdioMode = enabled
}

// SetOutput sets the writer used for diagnostic output. Pass nil to
// disable it.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// InitLogFile opens a timestamped log file under the OS temp dir and
// routes output there, returning its path.
func InitLogFile() (string, error) {
	mu.Lock()
	defer mu.Unlock()

	dir := filepath.Join(os.TempDir(), "sarid-logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}
	name := fmt.Sprintf("sarid-%s.log", time.Now().Format("2006-01-02T150405"))
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("open log file: %w", err)
	}
	file = f
	output = f
	return path, nil
}

// Close closes the log file if one is open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		err := file.Close()
		file = nil
		output = nil
		return err
	}
	return nil
}

func enabled() bool {
	if StdioMode {
		return false
	}
	if Verbose {
		return true
	}
	v := os.Getenv("SARI_DEBUG")
	return v == "1" || v == "true"
}

func writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return output
}

// Category is a named diagnostic channel, mirroring cmd/lci's
// per-subsystem Log* helpers (LogIndexing, LogMCP, ...).
type Category string

const (
	CategoryIngest   Category = "INGEST"
	CategoryStore    Category = "STORE"
	CategorySearch   Category = "SEARCH"
	CategoryParser   Category = "PARSER"
	CategoryMCP      Category = "MCP"
	CategoryGateway  Category = "GATEWAY"
	CategoryRegistry Category = "REGISTRY"
	CategoryDaemon   Category = "DAEMON"
)

// Log writes a formatted line tagged with the given category, subject
// to StdioMode suppression and the debug-enabled gate.
func Log(cat Category, format string, args ...interface{}) {
	if !enabled() {
		return
	}
	w := writer()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[%s] "+format+"\n", append([]interface{}{cat}, args...)...)
}

func LogIngest(format string, args ...interface{})   { Log(CategoryIngest, format, args...) }
func LogStore(format string, args ...interface{})    { Log(CategoryStore, format, args...) }
func LogSearch(format string, args ...interface{})   { Log(CategorySearch, format, args...) }
func LogParser(format string, args ...interface{})   { Log(CategoryParser, format, args...) }
func LogMCP(format string, args ...interface{})      { Log(CategoryMCP, format, args...) }
func LogGateway(format string, args ...interface{})  { Log(CategoryGateway, format, args...) }
func LogRegistry(format string, args ...interface{}) { Log(CategoryRegistry, format, args...) }
func LogDaemon(format string, args ...interface{})   { Log(CategoryDaemon, format, args...) }

// Warn always writes, even outside of stdio-mode suppression it still
// respects StdioMode, but bypasses the debug-enabled gate: warnings are
// operator-facing, not developer diagnostics.
func Warn(cat Category, format string, args ...interface{}) {
	if StdioMode {
		return
	}
	w := writer()
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "[WARN:%s] "+format+"\n", append([]interface{}{cat}, args...)...)
}

// Error is like Warn but tagged as an error-level line.
func Error(cat Category, format string, args ...interface{}) {
	if StdioMode {
		return
	}
	w := writer()
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "[ERROR:%s] "+format+"\n", append([]interface{}{cat}, args...)...)
}
