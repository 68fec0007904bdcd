package chat

import "time"

// Mode selects the topic framing for a session and the triage strictness
// applied to its turns.
type Mode string

const (
	ModeGeneral Mode = "GENERAL"
	ModeMood    Mode = "MOOD"
	ModeBonding Mode = "BONDING"
	ModeHealth  Mode = "HEALTH"
)

// ParseMode normalizes free-form mode input, defaulting to GENERAL.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeMood, ModeBonding, ModeHealth, ModeGeneral:
		return Mode(s)
	}
	return ModeGeneral
}

// Session is one conversational thread scoped to a patient's calendar day.
// Day is the UTC instant of local midnight in the patient's timezone and,
// together with SeqInDay, identifies the thread within that day.
type Session struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patientId"`
	Day       time.Time `json:"day"`
	SeqInDay  int       `json:"seqInDay"`
	Mode      Mode      `json:"mode"`
	CreatedAt time.Time `json:"createdAt"`
}
