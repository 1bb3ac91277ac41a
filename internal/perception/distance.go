package perception

// DistanceEstimator converts a detection's pixel height into a metric range
// using the pinhole camera model. Objects are assumed upright and fully
// visible.
type DistanceEstimator struct {
	FocalLength float64           // pixels
	RealHeights map[Class]float64 // metres
}

// Estimate returns H*f/h for the class, or UnknownDistance when the class has
// no configured height or pixelHeight is not positive.
func (e DistanceEstimator) Estimate(class Class, pixelHeight float64) Distance {
	if pixelHeight <= 0 {
		return UnknownDistance
	}
	h, ok := e.RealHeights[class]
	if !ok || h <= 0 {
		return UnknownDistance
	}
	return KnownDistance(h * e.FocalLength / pixelHeight)
}

// Process annotates each detection with its distance estimate.
func (e DistanceEstimator) Process(dets []Detection) []ProcessedDetection {
	out := make([]ProcessedDetection, 0, len(dets))
	for _, d := range dets {
		out = append(out, ProcessedDetection{
			Detection: d,
			Distance:  e.Estimate(d.Class, float64(d.Box.Height())),
		})
	}
	return out
}
