package chat

import "time"

// Role identifies who authored a message.
type Role string

const (
	RolePatient   Role = "PATIENT"
	RoleAssistant Role = "ASSISTANT"
	RoleProvider  Role = "PROVIDER"
)

// Oversight is the review state of an assistant-originated message.
type Oversight string

const (
	OversightNone     Oversight = "NONE"
	OversightAwaiting Oversight = "AWAITING_PROVIDER"
	OversightApproved Oversight = "APPROVED"
)

// Meta is the closed set of per-message annotations. Which fields are set
// depends on the role and oversight state of the message.
type Meta struct {
	Mode               Mode       `json:"mode,omitempty"`
	RiskSignal         string     `json:"riskSignal,omitempty"`
	Reason             string     `json:"reason,omitempty"`
	ProviderProposed   bool       `json:"providerProposed,omitempty"`
	Display            string     `json:"display,omitempty"`
	ProviderName       string     `json:"providerName,omitempty"`
	ApprovedAt         *time.Time `json:"approvedAt,omitempty"`
	ApprovedTicketID   string     `json:"approvedTicketId,omitempty"`
	InjectedFromTicket string     `json:"injectedFromTicket,omitempty"`
}

// DisplayPlaceholder marks the patient-visible stand-in for a turn that is
// awaiting provider approval.
const DisplayPlaceholder = "placeholder"

// Message is one turn inside a session. Messages are append-only: the single
// permitted rewrite is the placeholder resolution performed by approval, which
// flips oversight from AWAITING_PROVIDER to APPROVED.
type Message struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"sessionId"`
	Role          Role      `json:"role"`
	Content       string    `json:"content"`
	Oversight     Oversight `json:"oversight"`
	RelayTicketID string    `json:"relayTicketId,omitempty"`
	Meta          Meta      `json:"meta"`
	CreatedAt     time.Time `json:"createdAt"`
}
