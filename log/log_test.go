package log

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitializeWritesPrefixedLines(t *testing.T) {
	defer Initialize(os.Stderr, false)

	var buf bytes.Buffer
	Initialize(&buf, false)

	InfoLog.Printf("launching %s", "living_light")
	WarningLog.Print("history unavailable")

	out := buf.String()
	assert.Contains(t, out, "INFO: ")
	assert.Contains(t, out, "launching living_light")
	assert.Contains(t, out, "WARNING: ")
}

func TestDebugEnabled(t *testing.T) {
	prev := debugEnabled
	defer func() {
		debugEnabled = prev
		Initialize(os.Stderr, false)
	}()

	var buf bytes.Buffer
	debugEnabled = false
	Initialize(&buf, false)
	DebugLog.Print("hidden")
	assert.Empty(t, buf.String())

	Initialize(&buf, true)
	DebugLog.Print("shown")
	assert.Contains(t, buf.String(), "DEBUG: shown")
}

func TestRedirect(t *testing.T) {
	prev := debugEnabled
	defer func() {
		debugEnabled = prev
		Initialize(os.Stderr, false)
	}()

	var terminal, file bytes.Buffer
	debugEnabled = false
	Initialize(&terminal, false)

	restore := Redirect(&file)
	InfoLog.Print("while redirected")
	ErrorLog.Print("failure while redirected")
	DebugLog.Print("hidden")
	restore()
	restore()
	WarningLog.Print("after restore")

	assert.Contains(t, file.String(), "while redirected")
	assert.Contains(t, file.String(), "failure while redirected")
	assert.NotContains(t, file.String(), "hidden")
	assert.NotContains(t, terminal.String(), "while redirected")
	assert.Contains(t, terminal.String(), "after restore")
}
