// Package responder wraps the text-generation collaborator. It is treated as
// an untrusted oracle: callers never let a failure here block a turn, and the
// triage layer may override its verdict.
package responder

import (
	"context"

	"github.com/AHasnain3/mamamia/internal/model/chat"
	"github.com/AHasnain3/mamamia/internal/model/oversight"
)

// Request carries the conversational inputs for one generation call.
type Request struct {
	Mode        chat.Mode
	PatientName string
	Stage       chat.Stage
	Text        string
	History     []chat.Message
}

// Verdict is the responder's reply plus its own review judgment.
type Verdict struct {
	Reply       string
	NeedsReview bool
	Reason      string
	RiskSignal  oversight.RiskSignal
}

// TokenStream yields reply tokens until io.EOF.
type TokenStream interface {
	Recv() (string, error)
	Close()
}

// Client is the outbound surface to the model.
type Client interface {
	// Respond returns a full reply with the model's review verdict.
	Respond(ctx context.Context, req Request) (Verdict, error)
	// Draft returns a short reply intended for provider review.
	Draft(ctx context.Context, req Request) (string, error)
	// Stream yields reply tokens for the safe path.
	Stream(ctx context.Context, req Request) (TokenStream, error)
}

// Deterministic fallback strings. Upstream failures degrade to these rather
// than surfacing on the turn path.
const (
	FallbackReply = "I'm here with you. Could you share a bit more?"
	FallbackDraft = "Draft prepared for provider review."
)
