package tracking

import (
	"fmt"
	"math"

	"github.com/linh0526/canh-bao-va-cham/internal/perception"
)

// Identity is a coarse key grouping detections believed to be the same
// object across frames. It is not guaranteed unique: distinct objects that
// share a class and grid cell alias to one Identity.
type Identity string

// IdentityStrategy assigns an Identity to a detection. Implementations can
// replace the default grid binning with IoU matching or a Kalman tracker
// without touching velocity estimation or alert arbitration.
type IdentityStrategy interface {
	Assign(d perception.ProcessedDetection) Identity
}

// GridBinning derives identity from the class and the box center quantized
// by a square cell.
type GridBinning struct {
	CellSize float64 // pixels
}

// Assign implements IdentityStrategy.
func (g GridBinning) Assign(d perception.ProcessedDetection) Identity {
	cell := g.CellSize
	if cell <= 0 {
		cell = 50
	}
	cx, cy := d.Box.Center()
	return Identity(fmt.Sprintf("%s_%d_%d", d.Class,
		int(math.Floor(cx/cell)), int(math.Floor(cy/cell))))
}
