package vpti

import "github.com/rwth-ice/vpti/internal/constants"

// Re-exported tunables, for callers that want to reference them without
// importing the internal package directly.
const (
	CoverageMapSize  = constants.MapSize
	MQMaxLength      = constants.MQMaxLength
	PipeReadErrorMax = constants.PipeReadErrorMax
	ReadyMessage     = constants.ReadyMessage
)
