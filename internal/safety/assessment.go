package safety

// Level orders how dangerous an input is judged to be.
type Level int

const (
	LevelSafe Level = iota
	// LevelCaution is part of the scale but no rule currently produces it.
	LevelCaution
	LevelWarning
	LevelDanger
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelSafe:
		return "safe"
	case LevelCaution:
		return "caution"
	case LevelWarning:
		return "warning"
	case LevelDanger:
		return "danger"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Assessment is the verdict of validating one user message.
type Assessment struct {
	Level                     Level
	EmergencyDetected         bool
	HumanInterventionRequired bool
	Confidence                float64
	Warnings                  []string
}

// IsSafe reports whether the message may continue down the normal path
// without extra handling.
func (a Assessment) IsSafe() bool {
	return a.Level == LevelSafe || a.Level == LevelCaution
}
