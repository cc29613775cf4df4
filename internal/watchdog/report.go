package watchdog

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimeLayout is used for every timestamp in a report.
const TimeLayout = "02-01-2006 15:04:05 UTC"

// IncludeLocalsKey is the configuration key that enables local variables.
const IncludeLocalsKey = "include_locals"

// Report is the diagnostic produced when a watchdog fires. It is built once
// and never modified; sinks share the same value.
type Report struct {
	ID          uuid.UUID
	CapturedAt  time.Time
	Request     Request
	Hostname    string
	GoroutineID int64
	PID         int
	Started     time.Time

	text string
}

// NewReport returns a copy of meta carrying text as its body. It is how
// stored or replayed reports are rebuilt; fired reports come from the Watchdog.
func NewReport(meta Report, text string) *Report {
	meta.text = text
	return &meta
}

// Text is the full report body.
func (r *Report) Text() string { return r.text }

// Bytes is Text as UTF-8.
func (r *Report) Bytes() []byte { return []byte(r.text) }

// Subject is a one-line summary, e.g. for an email subject.
func (r *Report) Subject() string {
	return "Slow Request Watchdog: " + r.Request.String()
}

// reportInput carries everything composeReport lays out.
type reportInput struct {
	Report
	stack         string
	localsStack   string
	includeLocals bool
	captured      bool
}

func composeReport(in reportInput) *Report {
	var b strings.Builder

	fmt.Fprintf(&b, "Undead request intercepted at: %s\n\n", in.CapturedAt.UTC().Format(TimeLayout))
	fmt.Fprintf(&b, "%s\n", in.Request.String())
	fmt.Fprintf(&b, "Hostname:   %s\n", in.Hostname)
	fmt.Fprintf(&b, "Goroutine:  %d\n", in.GoroutineID)
	fmt.Fprintf(&b, "Process ID: %d\n", in.PID)
	fmt.Fprintf(&b, "Started:    %s\n\n", in.Started.UTC().Format(TimeLayout))

	if !in.captured {
		b.WriteString("The goroutine serving this request finished before its stack could be captured.\n")
	} else {
		b.WriteString(in.stack)
		b.WriteString("\n\n")

		if !in.includeLocals {
			b.WriteString("This report does not contain the local stack variables.\n")
			b.WriteString("To enable this (very verbose) information, add this to your configuration:\n")
			fmt.Fprintf(&b, "  %s: true\n", IncludeLocalsKey)
		} else {
			b.WriteString("Full backtrace with local variables:\n\n")
			b.WriteString(in.localsStack)
			b.WriteString("\n")
		}
	}

	return NewReport(in.Report, b.String())
}
