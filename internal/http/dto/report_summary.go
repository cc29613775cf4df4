package dto

import (
	"time"

	"github.com/edirooss/slowdog/internal/watchdog"
)

// ReportSummary is the list view of a retained report.
type ReportSummary struct {
	ID          string        `json:"id"`
	CapturedAt  time.Time     `json:"captured_at"`
	Started     time.Time     `json:"started"`
	Elapsed     time.Duration `json:"elapsed_ns"`
	Request     string        `json:"request"`
	Route       string        `json:"route,omitempty"`
	RequestID   string        `json:"request_id,omitempty"`
	GoroutineID int64         `json:"goroutine_id"`
}

// NewReportSummary projects r into its list view.
func NewReportSummary(r *watchdog.Report) ReportSummary {
	return ReportSummary{
		ID:          r.ID.String(),
		CapturedAt:  r.CapturedAt.UTC(),
		Started:     r.Started.UTC(),
		Elapsed:     r.CapturedAt.Sub(r.Started),
		Request:     r.Request.String(),
		Route:       r.Request.Route,
		RequestID:   r.Request.RequestID,
		GoroutineID: r.GoroutineID,
	}
}
