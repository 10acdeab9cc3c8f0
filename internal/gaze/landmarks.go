// Package gaze turns per-frame face landmark results into presence and
// head-direction malpractice triggers.
package gaze

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Face-mesh indices of the keypoints the heuristic reads.
const (
	meshNose     = 1
	meshLeftEye  = 33
	meshRightEye = 263
	meshForehead = 10
	meshChin     = 152
)

// Point is a normalized landmark coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// Landmarks holds the five keypoints of one detected face.
// It decodes either from a keyed object or from a full face-mesh array.
type Landmarks struct {
	Nose     Point `json:"nose"`
	LeftEye  Point `json:"leftEye"`
	RightEye Point `json:"rightEye"`
	Forehead Point `json:"forehead"`
	Chin     Point `json:"chin"`
}

func (l *Landmarks) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var mesh []Point
		if err := json.Unmarshal(data, &mesh); err != nil {
			return err
		}
		if len(mesh) <= meshRightEye {
			return fmt.Errorf("face mesh has %d points, need at least %d", len(mesh), meshRightEye+1)
		}
		*l = Landmarks{
			Nose:     mesh[meshNose],
			LeftEye:  mesh[meshLeftEye],
			RightEye: mesh[meshRightEye],
			Forehead: mesh[meshForehead],
			Chin:     mesh[meshChin],
		}
		return nil
	}

	type plain Landmarks
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*l = Landmarks(p)
	return nil
}

// Frame is one face-detection result. Error carries a detector failure
// reported by the client for this frame.
type Frame struct {
	Faces []Landmarks `json:"faces"`
	Error string      `json:"error,omitempty"`
}

// Direction labels.
const (
	LookingLeft  = "looking left"
	LookingRight = "looking right"
	LookingDown  = "looking down"
	LookingUp    = "looking up"
)

// Classify returns the head-direction label for a face, or "" when the face
// is centred. A vertical anomaly overrides a horizontal one.
func Classify(l Landmarks) string {
	direction := ""

	leftDist := abs(l.Nose.X - l.LeftEye.X)
	rightDist := abs(l.RightEye.X - l.Nose.X)
	if leftDist/rightDist > directionRatio {
		direction = LookingLeft
	} else if rightDist/leftDist > directionRatio {
		direction = LookingRight
	}

	topDist := abs(l.Nose.Y - l.Forehead.Y)
	bottomDist := abs(l.Chin.Y - l.Nose.Y)
	if topDist/bottomDist > directionRatio {
		direction = LookingDown
	} else if bottomDist/topDist > directionRatio {
		direction = LookingUp
	}

	return direction
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
