// Package diagnostics describes the status events pushed to preview clients.
package diagnostics

import (
	"fmt"
	"maps"
	"time"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

// Codes are dotted, area first.
const (
	TestRunning   = "TEST.RUNNING"
	TestDone      = "TEST.DONE"
	TestUnknown   = "TEST.UNKNOWN"
	FetchStarted  = "FETCH.STARTED"
	FetchDone     = "FETCH.DONE"
	FetchFailed   = "FETCH.FAILED"
	QueueRebuilt  = "QUEUE.REBUILT"
	ConfigApplied = "CONFIG.APPLIED"
	ConfigInvalid = "CONFIG.INVALID"
	DisplayFailed = "DISPLAY.FAILED"
)

type Diagnostic struct {
	Time           time.Time      `json:"time"`
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

func New(sev Severity, code, summary string) Diagnostic {
	return Diagnostic{Time: time.Now(), Severity: sev, Code: code, Summary: summary}
}

// FromError builds an error diagnostic carrying err as its detail.
func FromError(code, summary string, err error) Diagnostic {
	d := New(Err, code, summary)
	if err != nil {
		d.Detail = err.Error()
	}
	return d
}

func (d Diagnostic) With(key string, v any) Diagnostic {
	ev := make(map[string]any, len(d.Evidence)+1)
	maps.Copy(ev, d.Evidence)
	ev[key] = v
	d.Evidence = ev
	return d
}

func (d Diagnostic) String() string {
	if d.Detail == "" {
		return fmt.Sprintf("[%s] %s: %s", d.Severity, d.Code, d.Summary)
	}
	return fmt.Sprintf("[%s] %s: %s (%s)", d.Severity, d.Code, d.Summary, d.Detail)
}

// Sink receives diagnostics.
type Sink interface {
	Push(d Diagnostic)
}

// Discard drops everything.
type Discard struct{}

func (Discard) Push(Diagnostic) {}
