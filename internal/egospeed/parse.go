package egospeed

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/linh0526/canh-bao-va-cham/internal/units"
)

var (
	ErrEmptyLine      = errors.New("empty speed line")
	ErrNegativeSpeed  = errors.New("negative speed")
	ErrNonFiniteSpeed = errors.New("non-finite speed")
)

type speedMessage struct {
	SpeedMPS *float64 `json:"speed_mps"`
	SpeedKPH *float64 `json:"speed_kph"`
}

// ParseSpeedLine decodes one line from the device. A bare number is m/s;
// a JSON object carries either speed_mps or speed_kph.
func ParseSpeedLine(line string) (float64, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, ErrEmptyLine
	}

	var mps float64
	if strings.HasPrefix(line, "{") {
		var msg speedMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return 0, fmt.Errorf("invalid speed message: %w", err)
		}
		switch {
		case msg.SpeedMPS != nil:
			mps = *msg.SpeedMPS
		case msg.SpeedKPH != nil:
			v, err := units.ToMPS(*msg.SpeedKPH, units.KPH)
			if err != nil {
				return 0, err
			}
			mps = v
		default:
			return 0, fmt.Errorf("speed message has no speed field: %s", line)
		}
	} else {
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid speed value %q: %w", line, err)
		}
		mps = v
	}

	if math.IsNaN(mps) || math.IsInf(mps, 0) {
		return 0, ErrNonFiniteSpeed
	}
	if mps < 0 {
		return 0, ErrNegativeSpeed
	}
	return mps, nil
}
