// Package triage decides whether a patient turn may be answered directly or
// must be queued for provider review. A deterministic keyword net runs first;
// only when it stays silent is the responder's own verdict trusted. The net
// can force escalation but never block one the responder asks for.
package triage

import (
	"context"
	"log"
	"strings"

	"github.com/AHasnain3/mamamia/internal/model/chat"
	"github.com/AHasnain3/mamamia/internal/model/oversight"
	"github.com/AHasnain3/mamamia/internal/service/responder"
)

// Result is the classification of one turn. Reply always holds usable text:
// the model's reply on the safe path, a provider draft on the review path.
type Result struct {
	NeedsReview bool
	RiskSignal  oversight.RiskSignal
	Reason      string
	Reply       string
}

// selfHarmReply is delivered to the provider draft when the RED net fires.
// The patient only ever sees the placeholder, never this text, until a
// provider approves it.
const selfHarmReply = "I'm concerned about your safety. I'm going to alert your care team now. " +
	"If you're in immediate danger, please call your local emergency number."

// Engine layers the keyword net over the responder.
type Engine struct {
	client responder.Client
}

// New builds a triage engine around the given responder.
func New(client responder.Client) *Engine {
	return &Engine{client: client}
}

// Classify applies the two-layer policy to one turn.
func (e *Engine) Classify(ctx context.Context, req responder.Request) Result {
	lower := strings.ToLower(req.Text)

	if trigger, ok := matchAny(lower, selfHarmTriggers); ok {
		log.Printf("[triage] self-harm trigger %q matched, forcing review", trigger)
		return Result{
			NeedsReview: true,
			RiskSignal:  oversight.RiskRed,
			Reason:      "Self-harm language detected",
			Reply:       selfHarmReply,
		}
	}

	if req.Mode == chat.ModeHealth {
		if trigger, ok := matchAny(lower, clinicalTriggers); ok {
			log.Printf("[triage] clinical trigger %q matched in health mode, forcing review", trigger)
			return Result{
				NeedsReview: true,
				RiskSignal:  oversight.RiskYellow,
				Reason:      "Potential clinical topic/urgent symptom requires provider oversight",
				Reply:       e.draftOrFallback(ctx, req),
			}
		}
	}

	verdict, err := e.client.Respond(ctx, req)
	if err != nil {
		// The safe path never hard-fails on the model; degrade to the
		// generic supportive prompt.
		log.Printf("[triage] responder unavailable, using fallback reply: %v", err)
		return Result{RiskSignal: oversight.RiskGreen, Reply: responder.FallbackReply}
	}

	signal := verdict.RiskSignal
	if signal == "" {
		signal = oversight.RiskGreen
	}
	reason := verdict.Reason
	if verdict.NeedsReview && reason == "" {
		reason = "provider review requested"
	}
	reply := verdict.Reply
	if reply == "" {
		if verdict.NeedsReview {
			reply = responder.FallbackDraft
		} else {
			reply = responder.FallbackReply
		}
	}

	return Result{
		NeedsReview: verdict.NeedsReview,
		RiskSignal:  signal,
		Reason:      reason,
		Reply:       reply,
	}
}

// draftOrFallback requests a short provider draft. Escalation must never
// produce an empty draft, so failures fall back to static text.
func (e *Engine) draftOrFallback(ctx context.Context, req responder.Request) string {
	draft, err := e.client.Draft(ctx, req)
	if err != nil || strings.TrimSpace(draft) == "" {
		if err != nil {
			log.Printf("[triage] draft generation failed, using fallback: %v", err)
		}
		return responder.FallbackDraft
	}
	return draft
}

func matchAny(lowered string, triggers []string) (string, bool) {
	for _, trigger := range triggers {
		if strings.Contains(lowered, trigger) {
			return trigger, true
		}
	}
	return "", false
}
