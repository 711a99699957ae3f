package testutil

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/psd401/aistudio.psd401.ai/internal/logging"
)

// TestLogger is a real logging.Logger writing into an in-memory buffer,
// so tests can verify that secrets are redacted and that expected
// messages are produced.
//
// Example usage:
//
//	logger := testutil.NewTestLogger(t)
//	handler := rotation.NewExecutor(store, strategy, logger.Logger)
//
//	logger.AssertContains(t, "[REDACTED]")
//	logger.AssertNotContains(t, "password123")
type TestLogger struct {
	*logging.Logger
	buf *safeBuffer
}

// NewTestLogger creates a capturing logger with debug disabled.
func NewTestLogger(t *testing.T) *TestLogger {
	t.Helper()
	return NewTestLoggerWithDebug(t, false)
}

// NewTestLoggerWithDebug creates a capturing logger. When debug is true,
// Debug() calls are captured too.
func NewTestLoggerWithDebug(t *testing.T, debug bool) *TestLogger {
	t.Helper()

	buf := &safeBuffer{}
	return &TestLogger{
		Logger: logging.NewWithWriter(buf, debug),
		buf:    buf,
	}
}

// Output returns everything logged so far.
func (l *TestLogger) Output() string {
	return l.buf.String()
}

// Lines returns the captured output split into lines, without the
// trailing empty entry.
func (l *TestLogger) Lines() []string {
	out := strings.TrimSuffix(l.buf.String(), "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// AssertContains checks that the captured output contains substr.
func (l *TestLogger) AssertContains(t *testing.T, substr string) {
	t.Helper()
	assert.Contains(t, l.Output(), substr)
}

// AssertNotContains checks that the captured output does not contain
// substr. The workhorse for redaction checks.
func (l *TestLogger) AssertNotContains(t *testing.T, substr string) {
	t.Helper()
	assert.NotContains(t, l.Output(), substr)
}

// safeBuffer serializes buffer access so Output can be read while
// handler goroutines are still logging.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
