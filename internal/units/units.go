// Package units converts speeds between m/s and the display units.
package units

import (
	"fmt"
	"slices"
)

// Unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

const mpsToMPH = 2.2369362920544

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	return slices.Contains(ValidUnits, unit)
}

// ConvertSpeed converts a speed in m/s to the target units. Unknown units
// return the input unchanged.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * mpsToMPH
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// ToMPS converts a speed in the given units to m/s.
func ToMPS(speed float64, fromUnits string) (float64, error) {
	switch fromUnits {
	case MPS:
		return speed, nil
	case MPH:
		return speed / mpsToMPH, nil
	case KMPH, KPH:
		return speed / 3.6, nil
	}
	return 0, fmt.Errorf("invalid unit %q: expected one of %v", fromUnits, ValidUnits)
}

// Label returns the human-readable suffix for a unit.
func Label(unit string) string {
	switch unit {
	case MPH:
		return "mph"
	case KMPH, KPH:
		return "km/h"
	default:
		return "m/s"
	}
}

// FormatSpeed renders a m/s speed in the target units with one decimal.
func FormatSpeed(speedMPS float64, unit string) string {
	return fmt.Sprintf("%.1f %s", ConvertSpeed(speedMPS, unit), Label(unit))
}
