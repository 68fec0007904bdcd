package chat

import "time"

// Stage tracks where a patient sits in the postpartum care journey. It shades
// the assistant's tone but never loosens triage.
type Stage string

const (
	StageUndiagnosed Stage = "UNDIAGNOSED"
	StageAtRisk      Stage = "AT_RISK"
	StageDiagnosed   Stage = "DIAGNOSED"
	StageRecovering  Stage = "RECOVERING"
)

// ParseStage normalizes free-form stage input, defaulting to UNDIAGNOSED.
func ParseStage(s string) Stage {
	switch Stage(s) {
	case StageAtRisk, StageDiagnosed, StageRecovering, StageUndiagnosed:
		return Stage(s)
	}
	return StageUndiagnosed
}

// Patient is a registered mother. Timezone is an IANA name used to map her
// local calendar days onto UTC session days.
type Patient struct {
	ID            string    `json:"id"`
	PreferredName string    `json:"preferredName"`
	Timezone      string    `json:"timezone"`
	Stage         Stage     `json:"stage"`
	PasswordHash  string    `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
}
