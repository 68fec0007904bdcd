// Package oversight holds the human-review entities: the relay ticket queued
// for a provider, the editable draft attached to it, and the immutable reply
// record kept for audit.
package oversight

import "time"

// RiskSignal is the ordinal safety classification, GREEN < YELLOW < RED.
type RiskSignal string

const (
	RiskGreen  RiskSignal = "GREEN"
	RiskYellow RiskSignal = "YELLOW"
	RiskRed    RiskSignal = "RED"
)

// TicketStatus tracks the single PENDING -> ANSWERED transition.
type TicketStatus string

const (
	TicketPending  TicketStatus = "PENDING"
	TicketAnswered TicketStatus = "ANSWERED"
)

// RiskFlags records why triage escalated a turn.
type RiskFlags struct {
	Signal RiskSignal `json:"signal"`
	Reason string     `json:"reason"`
}

// ContextSnapshot preserves the conversational context at escalation time so
// the provider sees what the patient saw, and so approval can recover a
// deliverable session if the placeholder is ever lost.
type ContextSnapshot struct {
	SessionID string          `json:"sessionId"`
	Mode      string          `json:"mode"`
	Date      string          `json:"date"`
	Recent    []SnapshotEntry `json:"recent,omitempty"`
}

// SnapshotEntry is one truncated transcript line inside a snapshot.
type SnapshotEntry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Oversight string    `json:"oversight"`
	At        time.Time `json:"at"`
}

// RelayTicket is the unit of pending human-review work, created exactly once
// per escalated turn.
type RelayTicket struct {
	ID        string          `json:"id"`
	PatientID string          `json:"patientId"`
	Question  string          `json:"question"`
	RiskFlags RiskFlags       `json:"riskFlags"`
	Snapshot  ContextSnapshot `json:"snapshot"`
	Status    TicketStatus    `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ModelMeta records which model produced a draft.
type ModelMeta struct {
	Model       string  `json:"model,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
}

// ProviderDraft is the proposed reply a provider reviews. Editable while the
// ticket is pending, frozen once Approved is set.
type ProviderDraft struct {
	ID           string    `json:"id"`
	TicketID     string    `json:"ticketId"`
	DraftText    string    `json:"draftText"`
	Approved     bool      `json:"approved"`
	ModelMeta    ModelMeta `json:"modelMeta"`
	CreatedAt    time.Time `json:"createdAt"`
	LastEditedAt time.Time `json:"lastEditedAt"`
}

// ProviderReply is the append-only audit record of what was actually sent.
// Rows are never mutated after creation.
type ProviderReply struct {
	ID           string    `json:"id"`
	TicketID     string    `json:"ticketId"`
	FinalText    string    `json:"finalText"`
	ProviderName string    `json:"providerName"`
	AckByMother  bool      `json:"ackByMother"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PendingTicket is the provider-queue view: a pending ticket joined with its
// most recent draft and the patient's display name.
type PendingTicket struct {
	Ticket      RelayTicket    `json:"ticket"`
	LatestDraft *ProviderDraft `json:"latestDraft,omitempty"`
	PatientName string         `json:"patientName"`
}
