// Package detect adapts object detectors to the collision pipeline. The
// YOLOv8 OpenCV backend lives in detect/yolo; this package holds the pure
// decoding helpers and a scripted detector for dev mode and tests.
package detect

import (
	"github.com/linh0526/canh-bao-va-cham/internal/capture"
	"github.com/linh0526/canh-bao-va-cham/internal/perception"
)

// Detector finds road objects in a frame. Implementations apply their own
// confidence threshold and drop classes outside perception.AllowedClasses.
type Detector interface {
	Detect(f capture.Frame) ([]perception.Detection, error)
	Close() error
}

// cocoClasses maps COCO class indices to the allow-listed classes.
var cocoClasses = map[int]perception.Class{
	0: perception.ClassPerson,
	1: perception.ClassBicycle,
	2: perception.ClassCar,
	3: perception.ClassMotorcycle,
	5: perception.ClassBus,
	7: perception.ClassTruck,
}

// COCOClass returns the allow-listed class for a COCO index.
func COCOClass(id int) (perception.Class, bool) {
	c, ok := cocoClasses[id]
	return c, ok
}
