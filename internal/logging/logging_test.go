package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func saveAndRestore() func() {
	origVerbose := Verbose
	origStdio := StdioMode
	origOutput := output
	origFile := file
	return func() {
		Verbose = origVerbose
		StdioMode = origStdio
		output = origOutput
		file = origFile
	}
}

func TestSetStdioMode(t *testing.T) {
	defer saveAndRestore()()

	SetStdioMode(true)
	assert.True(t, StdioMode)
	SetStdioMode(false)
	assert.False(t, StdioMode)
}

func TestLogSuppressedInStdioMode(t *testing.T) {
	defer saveAndRestore()()

	var buf bytes.Buffer
	SetOutput(&buf)
	Verbose = true
	StdioMode = true

	LogIngest("scan %d files", 3)
	assert.Empty(t, buf.String())
}

func TestLogWritesWhenEnabled(t *testing.T) {
	defer saveAndRestore()()

	var buf bytes.Buffer
	SetOutput(&buf)
	Verbose = true
	StdioMode = false

	LogStore("committed %d rows", 7)
	assert.Contains(t, buf.String(), "[STORE]")
	assert.Contains(t, buf.String(), "committed 7 rows")
}

func TestLogDisabledWithoutVerbose(t *testing.T) {
	defer saveAndRestore()()

	var buf bytes.Buffer
	SetOutput(&buf)
	Verbose = false
	StdioMode = false

	LogSearch("query took %dms", 5)
	assert.Empty(t, buf.String())
}

func TestWarnIgnoresDebugGateButRespectsStdioMode(t *testing.T) {
	defer saveAndRestore()()

	var buf bytes.Buffer
	SetOutput(&buf)
	Verbose = false
	StdioMode = false

	Warn(CategoryRegistry, "stale entry pruned: %s", "boot-1")
	assert.Contains(t, buf.String(), "[WARN:REGISTRY]")

	buf.Reset()
	StdioMode = true
	Warn(CategoryRegistry, "should not appear")
	assert.Empty(t, buf.String())
}
