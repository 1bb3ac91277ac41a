package risk

import "github.com/linh0526/canh-bao-va-cham/internal/tracking"

// RelativeVelocity returns the closing speed in m/s from the two most recent
// samples with a known distance. Positive means the object is getting
// closer. It returns 0 with fewer than two such samples or when the elapsed
// time is not positive.
func RelativeVelocity(history []tracking.Sample) float64 {
	var cur, prev *tracking.Sample
	for i := len(history) - 1; i >= 0; i-- {
		if !history[i].Distance.Known {
			continue
		}
		if cur == nil {
			cur = &history[i]
			continue
		}
		prev = &history[i]
		break
	}
	if prev == nil {
		return 0
	}
	dt := cur.Time.Sub(prev.Time).Seconds()
	if dt <= 0 {
		return 0
	}
	return -(cur.Distance.Meters - prev.Distance.Meters) / dt
}

// TimeToCollision returns distance/velocity for an approaching object, 0 when
// the object is already at or inside zero range, and nil when the object is
// not approaching.
func TimeToCollision(distance, velocity float64) *float64 {
	if velocity <= 0 {
		return nil
	}
	if distance <= 0 {
		zero := 0.0
		return &zero
	}
	ttc := distance / velocity
	return &ttc
}

// StoppingDistance is the reaction distance plus the braking distance for
// a vehicle travelling at speed m/s.
func StoppingDistance(speed, reactionTime, deceleration float64) float64 {
	return speed*reactionTime + speed*speed/(2*deceleration)
}
