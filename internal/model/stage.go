package model

// Stage is the coarse pipeline phase shown to the user. Stages are totally
// ordered and, for a single task, never go backwards.
type Stage int

const (
	StageIdle Stage = iota
	StageValidating
	StageEnriching
	StageQualityCheck
	StageDirectory
	StageDone
)

// Stages are the pipeline stages in order.
var Stages = []Stage{StageIdle, StageValidating, StageEnriching, StageQualityCheck, StageDirectory, StageDone}

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "Idle"
	case StageValidating:
		return "Validating"
	case StageEnriching:
		return "Enriching"
	case StageQualityCheck:
		return "QualityCheck"
	case StageDirectory:
		return "Directory"
	case StageDone:
		return "Done"
	}
	return "Unknown"
}

// Agent returns the name of the agent that works on the stage, empty for
// Idle and Done.
func (s Stage) Agent() string {
	switch s {
	case StageValidating:
		return "Validation Agent"
	case StageEnriching:
		return "Enrichment Agent"
	case StageQualityCheck:
		return "QA Agent"
	case StageDirectory:
		return "Directory Agent"
	}
	return ""
}

// Valid returns true if the stage is one of the known stages.
func (s Stage) Valid() bool {
	return s >= StageIdle && s <= StageDone
}

// MaxStage returns the most advanced of both stages.
func MaxStage(a, b Stage) Stage {
	if a > b {
		return a
	}
	return b
}
