package orbit

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// orbitFile mirrors the subset of an Earth Explorer orbit prediction file
// that carries state vectors
type orbitFile struct {
	XMLName xml.Name `xml:"Earth_Explorer_File"`
	OSVs    []osv    `xml:"Data_Block>List_of_OSVs>OSV"`
}

type osv struct {
	UTC           string   `xml:"UTC"`
	AbsoluteOrbit int      `xml:"Absolute_Orbit"`
	Z             *float64 `xml:"Z"`
	VZ            *float64 `xml:"VZ"`
}

// Prediction is the result of parsing an orbit prediction file
type Prediction struct {
	ANX        []time.Time // ascending
	FirstOrbit int         // absolute orbit number of ANX[0]
}

// LoadOrbitFile opens path and parses it with ParseOrbitFile
func LoadOrbitFile(path string) (Prediction, error) {
	f, err := os.Open(path)
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to open orbit file: %w", err)
	}
	defer f.Close()

	pred, err := ParseOrbitFile(f)
	if err != nil {
		return Prediction{}, fmt.Errorf("%s: %w", path, err)
	}
	return pred, nil
}

// ParseOrbitFile extracts ANX instants from the state vectors of an orbit
// prediction file. When the vectors carry Z and VZ, an ANX is an OSV at
// which Z has just become non-negative while moving north. Otherwise every
// OSV is taken to be an ANX crossing, which is how predicted-ANX files list
// them.
func ParseOrbitFile(r io.Reader) (Prediction, error) {
	var doc orbitFile
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return Prediction{}, fmt.Errorf("failed to decode orbit file: %w", err)
	}
	if len(doc.OSVs) == 0 {
		return Prediction{}, ErrNoStateVectors
	}

	positional := true
	for _, v := range doc.OSVs {
		if v.Z == nil || v.VZ == nil {
			positional = false
			break
		}
	}

	var pred Prediction
	for i, v := range doc.OSVs {
		at, err := ParseUTC(v.UTC)
		if err != nil {
			return Prediction{}, fmt.Errorf("OSV %d: %w", i, err)
		}

		if positional {
			if i == 0 || *v.Z < 0 || *v.VZ <= 0 {
				continue
			}
			prev := doc.OSVs[i-1]
			if *prev.Z >= 0 {
				continue
			}
			prevAt, err := ParseUTC(prev.UTC)
			if err != nil {
				return Prediction{}, fmt.Errorf("OSV %d: %w", i-1, err)
			}
			at = interpolateCrossing(prevAt, *prev.Z, at, *v.Z)
		}

		if len(pred.ANX) == 0 {
			pred.FirstOrbit = v.AbsoluteOrbit
		}
		pred.ANX = append(pred.ANX, at)
	}

	if len(pred.ANX) == 0 {
		return Prediction{}, fmt.Errorf("%w: no northbound equator crossing", ErrNoStateVectors)
	}
	return pred, nil
}

// interpolateCrossing linearly interpolates the instant Z reaches zero
// between two samples, rounded to the microsecond
func interpolateCrossing(t0 time.Time, z0 float64, t1 time.Time, z1 float64) time.Time {
	if z1 == z0 {
		return t1
	}
	frac := -z0 / (z1 - z0)
	offset := time.Duration(frac * float64(t1.Sub(t0)))
	return t0.Add(offset).Round(time.Microsecond)
}

var utcLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseUTC parses an ISO-8601 timestamp. A leading "UTC=" tag is accepted
// and a timestamp without zone is taken to be UTC.
func ParseUTC(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "UTC="))
	for _, layout := range utcLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid UTC timestamp %q", s)
}
