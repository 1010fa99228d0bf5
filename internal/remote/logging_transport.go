package remote

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// LoggingTransport wraps an http.RoundTripper, dumping request/response
// pairs to a dedicated log file. It is an ambient debugging aid gated by
// config and is never required for correct operation.
type LoggingTransport struct {
	Transport http.RoundTripper
	logFile   *os.File
	mu        sync.Mutex
	writer    *bufio.Writer
}

// NewLoggingTransport opens logFilePath for appending and wraps transport
// (or http.DefaultTransport if nil).
func NewLoggingTransport(transport http.RoundTripper, logFilePath string) (*LoggingTransport, error) {
	f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open api log file %s: %w", logFilePath, err)
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &LoggingTransport{
		Transport: transport,
		logFile:   f,
		writer:    bufio.NewWriter(f),
	}, nil
}

// RoundTrip executes the request, logging a request/response dump on the way
// through. JSON response bodies are peeked and restored so the caller still
// sees the full body.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := time.Now()
	if dump, err := httputil.DumpRequestOut(req, true); err == nil {
		t.writeLog(fmt.Sprintf("--- Request (%s) ---\n%s", start.Format(time.RFC3339), string(dump)))
	} else {
		log.WithError(err).Warn("failed to dump outgoing request for logging")
	}

	resp, err := t.Transport.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		t.writeLog(fmt.Sprintf("--- Response Error (duration %v) ---\n%s", duration, err.Error()))
		t.flush()
		return resp, err
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			t.writeLog(fmt.Sprintf("--- Response (duration %v) ---\nStatus: %s\n(failed to read body: %v)", duration, resp.Status, readErr))
		} else {
			resp.Body = io.NopCloser(bytes.NewReader(body))
			t.writeLog(fmt.Sprintf("--- Response (duration %v) ---\nStatus: %s\n%s", duration, resp.Status, string(body)))
		}
	} else {
		if dump, err := httputil.DumpResponse(resp, false); err == nil {
			t.writeLog(fmt.Sprintf("--- Response Headers (duration %v) ---\n%s(body not logged)", duration, string(dump)))
		}
	}

	t.flush()
	return resp, err
}

func (t *LoggingTransport) writeLog(s string) {
	if _, err := t.writer.WriteString(s + "\n\n"); err != nil {
		fmt.Fprintf(os.Stderr, "error writing api log: %v\n", err)
	}
}

func (t *LoggingTransport) flush() {
	if err := t.writer.Flush(); err != nil {
		log.WithError(err).Error("failed to flush api log writer")
	}
}

// Close flushes and closes the underlying log file.
func (t *LoggingTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.writer.Flush(); err != nil {
		return err
	}
	return t.logFile.Close()
}
