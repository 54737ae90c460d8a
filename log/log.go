package log

import (
	"io"
	"log"
	"os"
	"sync"
)

var (
	WarningLog *log.Logger
	InfoLog    *log.Logger
	ErrorLog   *log.Logger
	DebugLog   *log.Logger
)

var debugEnabled = os.Getenv("DEBUG") == "true" || os.Getenv("DEBUG") == "1"

func init() {
	Initialize(os.Stderr, false)
}

// Initialize points the launcher's own loggers at w. Launcher diagnostics
// never share a file with the launched program's output.
func Initialize(w io.Writer, debug bool) {
	if debug {
		debugEnabled = true
	}

	flags := log.Ldate | log.Ltime | log.Lshortfile
	InfoLog = log.New(w, "INFO: ", flags)
	WarningLog = log.New(w, "WARNING: ", flags)
	ErrorLog = log.New(w, "ERROR: ", flags)
	if debugEnabled {
		DebugLog = log.New(w, "DEBUG: ", flags)
	} else {
		DebugLog = log.New(io.Discard, "", 0)
	}
}

// Redirect sends every logger's output to w until restore is called. Disabled
// debug logging stays discarded. restore may be called more than once.
func Redirect(w io.Writer) (restore func()) {
	loggers := []*log.Logger{InfoLog, WarningLog, ErrorLog}
	if debugEnabled {
		loggers = append(loggers, DebugLog)
	}

	prev := make([]io.Writer, len(loggers))
	for i, l := range loggers {
		prev[i] = l.Writer()
		l.SetOutput(w)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i, l := range loggers {
				l.SetOutput(prev[i])
			}
		})
	}
}
