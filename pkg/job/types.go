// Package job provides the public types of a zeejob analysis job.
// This package is intended to be importable by hosts that drive the job
// (event sources, external filter bindings) without depending on internals.
package job

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// EventLumiKey identifies the luminosity block an event belongs to.
type EventLumiKey struct {
	Run  uint32 `json:"run"`
	Lumi uint32 `json:"lumi"`
}

// String returns the "run:lumi" form.
func (k EventLumiKey) String() string {
	return fmt.Sprintf("%d:%d", k.Run, k.Lumi)
}

// EventID is the full identity of one recorded event as delivered by a source.
type EventID struct {
	Run   uint32 `json:"run"`
	Lumi  uint32 `json:"lumi"`
	Event uint64 `json:"event"`
}

// LumiKey returns the run/lumi pair of the event.
func (e EventID) LumiKey() EventLumiKey {
	return EventLumiKey{Run: e.Run, Lumi: e.Lumi}
}

// String returns the "run:lumi:event" form.
func (e EventID) String() string {
	return fmt.Sprintf("%d:%d:%d", e.Run, e.Lumi, e.Event)
}

// LumiRange is an inclusive range of luminosity blocks within one run.
type LumiRange struct {
	First uint32 `json:"first"`
	Last  uint32 `json:"last"`
}

// Contains reports whether lumi lies inside the range (bounds included).
func (r LumiRange) Contains(lumi uint32) bool {
	return lumi >= r.First && lumi <= r.Last
}

// Len returns the number of luminosity blocks covered by the range.
func (r LumiRange) Len() int {
	if r.Last < r.First {
		return 0
	}
	return int(r.Last-r.First) + 1
}

// InputTag names a data product: module label, optional instance and process.
type InputTag struct {
	Label    string `json:"label"`
	Instance string `json:"instance,omitempty"`
	Process  string `json:"process,omitempty"`
}

// ErrEmptyInputTag is returned when an input tag has no module label.
var ErrEmptyInputTag = errors.New("input tag label cannot be empty")

// ParseInputTag parses "label", "label:instance" or "label:instance:process".
func ParseInputTag(s string) (InputTag, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) > 3 {
		return InputTag{}, fmt.Errorf("input tag %q has more than three fields", s)
	}
	tag := InputTag{Label: parts[0]}
	if len(parts) > 1 {
		tag.Instance = parts[1]
	}
	if len(parts) > 2 {
		tag.Process = parts[2]
	}
	if tag.Label == "" {
		return InputTag{}, ErrEmptyInputTag
	}
	return tag, nil
}

// String renders the tag in its colon-separated form, dropping empty trailing fields.
func (t InputTag) String() string {
	switch {
	case t.Process != "":
		return t.Label + ":" + t.Instance + ":" + t.Process
	case t.Instance != "":
		return t.Label + ":" + t.Instance
	default:
		return t.Label
	}
}

// Defaults of the Z->ee filter module descriptor.
const (
	DefaultFilterType       = "ZeeFilter"
	DefaultElectronInputTag = "gsfElectrons"
	DefaultCSVFileName      = "Zee.csv"
	DefaultInvariantMassMin = 60.0
	DefaultInvariantMassMax = 120.0
)

// FilterParameters is the fixed parameter record handed to the external filter module.
type FilterParameters struct {
	// Type is the module type the host binds (e.g. "ZeeFilter")
	Type string `json:"type"`
	// ElectronInputTag selects the electron collection the filter reads
	ElectronInputTag InputTag `json:"electronInputTag"`
	// CSVFileName is where the filter persists matched pairs
	CSVFileName string `json:"csvFileName"`
	// InvariantMassMin is the inclusive lower bound of the dielectron mass window
	InvariantMassMin float64 `json:"invariantMassMin"`
	// InvariantMassMax is the inclusive upper bound of the dielectron mass window
	InvariantMassMax float64 `json:"invariantMassMax"`
}

// DefaultFilterParameters returns the parameters declared by the module descriptor.
func DefaultFilterParameters() FilterParameters {
	return FilterParameters{
		Type:             DefaultFilterType,
		ElectronInputTag: InputTag{Label: DefaultElectronInputTag},
		CSVFileName:      DefaultCSVFileName,
		InvariantMassMin: DefaultInvariantMassMin,
		InvariantMassMax: DefaultInvariantMassMax,
	}
}

// Validate checks the parameter record for consistency.
func (p FilterParameters) Validate() error {
	if strings.TrimSpace(p.Type) == "" {
		return errors.New("filter type cannot be empty")
	}
	if p.ElectronInputTag.Label == "" {
		return fmt.Errorf("electronInputTag: %w", ErrEmptyInputTag)
	}
	if strings.TrimSpace(p.CSVFileName) == "" {
		return errors.New("csvFileName cannot be empty")
	}
	if !isFinite(p.InvariantMassMin) || !isFinite(p.InvariantMassMax) {
		return errors.New("invariant mass bounds must be finite")
	}
	if p.InvariantMassMin >= p.InvariantMassMax {
		return fmt.Errorf("invariantMassMin (%g) must be less than invariantMassMax (%g)",
			p.InvariantMassMin, p.InvariantMassMax)
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// EventLimit caps the number of events processed by a job.
// Zero and negative values mean no cap.
type EventLimit int

// Unlimited is the canonical "no cap" value.
const Unlimited EventLimit = 0

// IsUnlimited reports whether the limit imposes no cap.
func (l EventLimit) IsUnlimited() bool {
	return l <= 0
}

// Reached reports whether n processed events exhaust the limit.
func (l EventLimit) Reached(n int) bool {
	return !l.IsUnlimited() && n >= int(l)
}

// HostValue returns the value written into a host configuration, where -1 means no cap.
func (l EventLimit) HostValue() int {
	if l.IsUnlimited() {
		return -1
	}
	return int(l)
}

// String returns "unlimited" or the numeric cap.
func (l EventLimit) String() string {
	if l.IsUnlimited() {
		return "unlimited"
	}
	return fmt.Sprintf("%d", int(l))
}

// ExecutionResult represents the result of driving a job over an event source.
type ExecutionResult struct {
	// JobID identifies this execution in logs
	JobID string `json:"jobId"`

	// JobName is the configured job name
	JobName string `json:"jobName"`

	// Status is the execution status ("success", "error", "canceled")
	Status string `json:"status"`

	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`

	// EventsRead counts events pulled from the source
	EventsRead int `json:"eventsRead"`

	// EventsNotCertified counts events skipped by the lumi mask
	EventsNotCertified int `json:"eventsNotCertified"`

	// EventsDeselected counts events skipped by the selection expression
	EventsDeselected int `json:"eventsDeselected"`

	// EventsProcessed counts events delivered to the filter step
	EventsProcessed int `json:"eventsProcessed"`

	// EventsAccepted counts events the filter step accepted
	EventsAccepted int `json:"eventsAccepted"`

	// LimitReached is true when the job stopped on maxEvents
	LimitReached bool `json:"limitReached"`

	// Error contains error details if execution failed
	Error *ExecutionError `json:"error,omitempty"`
}

// Duration returns the wall time of the execution.
func (r *ExecutionResult) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// ExecutionError contains details about an execution failure.
type ExecutionError struct {
	// Code is the error code
	Code string `json:"code"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Stage is the stage where the error occurred (source, prefilter, filter, output)
	Stage string `json:"stage,omitempty"`

	// ErrorCategory is the classified category of the error
	ErrorCategory string `json:"errorCategory,omitempty"`

	// Details contains additional error context
	Details map[string]interface{} `json:"details,omitempty"`
}
