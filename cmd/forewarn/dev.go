package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/linh0526/canh-bao-va-cham/internal/egospeed"
	"github.com/linh0526/canh-bao-va-cham/internal/perception"
)

// Dev scenario geometry: a 1280x720 frame and the default 900px focal
// length with a 1.5m car.
const (
	devWidth       = 1280
	devHeight      = 720
	devFocalHeight = 900 * 1.5
)

// devBox returns the box of a car at dist metres, drifting sideways with
// phase so the scene is never judged stationary.
func devBox(dist float64, phase int) perception.BoundingBox {
	h := devFocalHeight / dist
	w := h * 1.3
	cx := devWidth/2 + 24*math.Sin(float64(phase)/6)
	bottom := devHeight*0.55 + h/2
	return perception.BoundingBox{
		X1: int(cx - w/2),
		Y1: int(bottom - h),
		X2: int(cx + w/2),
		Y2: int(bottom),
	}
}

// devScenario scripts one lead car closing from 30m to 4m, holding, then
// pulling away, with a parked car on the kerb that the lane filter drops.
// One step is consumed per processed frame.
func devScenario() [][]perception.Detection {
	var steps [][]perception.Detection
	parked := perception.Detection{
		Class:      perception.ClassCar,
		Confidence: 0.81,
		Box:        perception.BoundingBox{X1: 20, Y1: 380, X2: 200, Y2: 520},
	}
	add := func(dist float64) {
		lead := perception.Detection{
			Class:      perception.ClassCar,
			Confidence: 0.9,
			Box:        devBox(dist, len(steps)),
		}
		steps = append(steps, []perception.Detection{lead, parked})
	}

	for d := 30.0; d > 4; d -= 0.1 {
		add(d)
	}
	for i := 0; i < 30; i++ {
		add(4)
	}
	for d := 4.0; d < 30; d += 0.2 {
		add(d)
	}
	return steps
}

// feedDevSpeed writes a gently varying ego speed around 30 km/h to port
// until ctx is done.
func feedDevSpeed(ctx context.Context, port *egospeed.MockPort) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			port.Close()
			return
		case <-ticker.C:
		}
		kph := 30 + 3*math.Sin(float64(i)/10)
		if err := port.WriteLine(fmt.Sprintf(`{"speed_kph": %.2f}`, kph)); err != nil {
			return
		}
	}
}
