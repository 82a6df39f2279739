// Package types defines the value types shared by the segmentation engine,
// the product generators and the CLI.
package types

import (
	"fmt"
	"time"
)

// Status describes how completely a segment is covered by acquisition data
type Status string

const (
	StatusNominal Status = "NOMINAL" // full grid cell (plus overlaps) covered
	StatusPartial Status = "PARTIAL" // truncated at an acquisition edge
	StatusMerged  Status = "MERGED"  // absorbed an undersized neighbour at an edge
)

// Window is a closed interval of absolute UTC time
type Window struct {
	Start time.Time `json:"start"`
	Stop  time.Time `json:"stop"`
}

// Duration returns Stop - Start
func (w Window) Duration() time.Duration {
	return w.Stop.Sub(w.Start)
}

// Valid reports whether Stop is strictly after Start
func (w Window) Valid() bool {
	return w.Stop.After(w.Start)
}

// Union returns the smallest window containing both w and o
func (w Window) Union(o Window) Window {
	out := w
	if o.Start.Before(out.Start) {
		out.Start = o.Start
	}
	if o.Stop.After(out.Stop) {
		out.Stop = o.Stop
	}
	return out
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s]", w.Start.UTC().Format(TimeLayout), w.Stop.UTC().Format(TimeLayout))
}

// TimeLayout is the microsecond ISO-8601 layout used in headers and logs
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// GridCell is one ANX-relative grid cell. Index is 1-based and restarts at
// every ANX crossing; Start/End are absolute and never wrapped.
type GridCell struct {
	Index int       `json:"index"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Segment is one output product's time coverage
type Segment struct {
	ID            int       `json:"id"`             // sequence id, base index + offset
	Cell          GridCell  `json:"cell"`           // theoretical grid cell
	SensingStart  time.Time `json:"sensing_start"`  // data actually covered
	SensingStop   time.Time `json:"sensing_stop"`   //
	ValidityStart time.Time `json:"validity_start"` // grid bounds plus overlap
	ValidityStop  time.Time `json:"validity_stop"`  //
	Status        Status    `json:"status"`
}

// Sensing returns the sensing interval as a Window
func (s Segment) Sensing() Window {
	return Window{Start: s.SensingStart, Stop: s.SensingStop}
}

// Validity returns the validity interval as a Window
func (s Segment) Validity() Window {
	return Window{Start: s.ValidityStart, Stop: s.ValidityStop}
}
