package solver

import "fmt"

// Stage is one phase of a step, in execution order.
type Stage int

const (
	StageCFL Stage = iota
	StageBoundary
	StageHalfKick
	StageDrift
	StageDensity
	StageViscosity
	StageStress
	StageAcceleration
	StageSecondHalfKick
	StageSmoothing
	StageNeighbors
	StageCheckpoint
)

var stageNames = [...]string{
	StageCFL:            "cfl",
	StageBoundary:       "boundary",
	StageHalfKick:       "half-kick",
	StageDrift:          "drift",
	StageDensity:        "density",
	StageViscosity:      "artificial-viscosity",
	StageStress:         "stress",
	StageAcceleration:   "acceleration",
	StageSecondHalfKick: "second-half-kick",
	StageSmoothing:      "smoothing",
	StageNeighbors:      "neighbor-search",
	StageCheckpoint:     "checkpoint",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}
