// Package model contains domain models passed between pipeline stages.
package model

import "time"

// Pose dimensionality flags as delivered by the pose source.
const (
	Pose2D = 2
	Pose3D = 3
)

// Vec is a 2- or 3-component position. Z is meaningful only for 3D poses
// and must stay zero for 2D input.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// JointSample is one conditioned joint position with tracking state.
type JointSample struct {
	Pos        Vec
	Tracked    bool
	Confidence float64 // [0,1]
}

// JointMap maps joint name to its conditioned sample for one frame.
type JointMap map[string]JointSample

// PoseFrame is the raw per-frame record consumed from the pose source.
// Joints and Confidence are parallel maps keyed by joint name.
type PoseFrame struct {
	TS         time.Time          `json:"ts"`
	Dim        int                `json:"dim"` // Pose2D or Pose3D
	Joints     map[string]Vec     `json:"joints"`
	Confidence map[string]float64 `json:"confidence"`
}

// MetricFrame carries the extracted metric values and confidences for one
// frame. Both maps contain exactly the exercise's required-metric set; a
// metric whose prerequisites are unmet holds NaN with confidence 0.
type MetricFrame struct {
	TS         time.Time
	Values     map[string]float64
	Confidence map[string]float64
}
