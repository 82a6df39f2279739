package product

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NameTimeLayout is the compact UTC layout used inside product names
const NameTimeLayout = "20060102T150405"

// typeWidth is the fixed width of the product type field
const typeWidth = 10

var ErrInvalidName = errors.New("product: malformed product name")

// Name holds the fields encoded in a product file name:
//
//	<MISSION>_<TYPE......>_<VSTART>_<VSTOP>_<ORBIT>_<NUM>_<BL>_<CREATION>
//
// The type field is padded with '_' to ten characters. Times are truncated
// to the second.
type Name struct {
	Mission       string
	Type          string
	ValidityStart time.Time
	ValidityStop  time.Time
	AbsoluteOrbit int
	Number        int // slice or frame number within the orbit
	Baseline      int
	Created       time.Time
}

// Validate checks that every field fits its slot in the name
func (n Name) Validate() error {
	switch {
	case n.Mission == "" || strings.Contains(n.Mission, "_"):
		return fmt.Errorf("%w: mission %q must be non-empty without '_'", ErrInvalidName, n.Mission)
	case n.Type == "" || len(n.Type) > typeWidth:
		return fmt.Errorf("%w: product type %q must be 1-%d characters", ErrInvalidName, n.Type, typeWidth)
	case n.AbsoluteOrbit < 0 || n.AbsoluteOrbit > 99999:
		return fmt.Errorf("%w: absolute orbit %d out of range", ErrInvalidName, n.AbsoluteOrbit)
	case n.Number < 0 || n.Number > 999:
		return fmt.Errorf("%w: number %d out of range", ErrInvalidName, n.Number)
	case n.Baseline < 0 || n.Baseline > 99:
		return fmt.Errorf("%w: baseline %d out of range", ErrInvalidName, n.Baseline)
	}
	return nil
}

func (n Name) String() string {
	return fmt.Sprintf("%s_%s_%s_%s_%05d_%03d_%02d_%s",
		n.Mission,
		n.Type+strings.Repeat("_", max(0, typeWidth-len(n.Type))),
		n.ValidityStart.UTC().Format(NameTimeLayout),
		n.ValidityStop.UTC().Format(NameTimeLayout),
		n.AbsoluteOrbit,
		n.Number,
		n.Baseline,
		n.Created.UTC().Format(NameTimeLayout),
	)
}

// ParseName inverts Name.String. Trailing '_' padding is stripped from the
// type, so types that end in '_' do not round-trip.
func ParseName(s string) (Name, error) {
	var n Name

	mission, rest, ok := strings.Cut(s, "_")
	if !ok || mission == "" {
		return n, fmt.Errorf("%w: %q", ErrInvalidName, s)
	}
	if len(rest) < typeWidth+1 || rest[typeWidth] != '_' {
		return n, fmt.Errorf("%w: %q: short type field", ErrInvalidName, s)
	}
	n.Mission = mission
	n.Type = strings.TrimRight(rest[:typeWidth], "_")

	fields := strings.Split(rest[typeWidth+1:], "_")
	if len(fields) != 6 {
		return n, fmt.Errorf("%w: %q: want 6 fields after type, got %d", ErrInvalidName, s, len(fields))
	}

	var err error
	if n.ValidityStart, err = time.Parse(NameTimeLayout, fields[0]); err != nil {
		return n, fmt.Errorf("%w: validity start: %v", ErrInvalidName, err)
	}
	if n.ValidityStop, err = time.Parse(NameTimeLayout, fields[1]); err != nil {
		return n, fmt.Errorf("%w: validity stop: %v", ErrInvalidName, err)
	}
	for i, dst := range []*int{&n.AbsoluteOrbit, &n.Number, &n.Baseline} {
		if *dst, err = strconv.Atoi(fields[2+i]); err != nil {
			return n, fmt.Errorf("%w: numeric field %q", ErrInvalidName, fields[2+i])
		}
	}
	if n.Created, err = time.Parse(NameTimeLayout, fields[5]); err != nil {
		return n, fmt.Errorf("%w: creation time: %v", ErrInvalidName, err)
	}
	return n, nil
}

// Key is the name without its creation date. Two runs over the same grid
// cell produce the same key.
func (n Name) Key() string {
	s := n.String()
	return s[:len(s)-len(NameTimeLayout)-1]
}
