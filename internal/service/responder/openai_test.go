package responder

import (
	"context"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/AHasnain3/mamamia/internal/model/chat"
	"github.com/AHasnain3/mamamia/internal/model/oversight"
)

func TestRespondWithoutCredentialsFallsBack(t *testing.T) {
	client := NewOpenAIClient(Config{})

	verdict, err := client.Respond(context.Background(), Request{Text: "hello"})
	if err != nil {
		t.Fatalf("Respond err: %v", err)
	}
	if verdict.Reply != FallbackReply {
		t.Fatalf("expected fallback reply, got %q", verdict.Reply)
	}
	if verdict.NeedsReview {
		t.Fatal("fallback must not request review")
	}
	if verdict.RiskSignal != oversight.RiskGreen {
		t.Fatalf("expected GREEN, got %s", verdict.RiskSignal)
	}
}

func TestDraftWithoutCredentialsErrors(t *testing.T) {
	client := NewOpenAIClient(Config{})
	if _, err := client.Draft(context.Background(), Request{Text: "hello"}); err == nil {
		t.Fatal("expected error without credentials")
	}
}

func TestStreamWithoutCredentialsErrors(t *testing.T) {
	client := NewOpenAIClient(Config{})
	if _, err := client.Stream(context.Background(), Request{Text: "hello"}); err == nil {
		t.Fatal("expected error without credentials")
	}
}

func TestModelMetaDefaults(t *testing.T) {
	client := NewOpenAIClient(Config{APIKey: "k"})
	meta := client.ModelMeta()
	if meta.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected default model: %q", meta.Model)
	}
	if meta.Temperature != 0.2 {
		t.Fatalf("unexpected default temperature: %v", meta.Temperature)
	}
}

func TestHistoryMessagesSkipsAwaitingRows(t *testing.T) {
	history := []chat.Message{
		{Role: chat.RolePatient, Content: "q1", Oversight: chat.OversightNone},
		{Role: chat.RoleAssistant, Content: "hidden draft", Oversight: chat.OversightAwaiting},
		{Role: chat.RoleAssistant, Content: "placeholder", Oversight: chat.OversightAwaiting},
		{Role: chat.RoleProvider, Content: "approved answer", Oversight: chat.OversightApproved},
		{Role: chat.RolePatient, Content: "q2", Oversight: chat.OversightNone},
	}

	msgs := historyMessages(history)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d: %+v", len(msgs), msgs)
	}
	if msgs[0].Role != openai.ChatMessageRoleUser || msgs[0].Content != "q1" {
		t.Fatalf("unexpected first message: %+v", msgs[0])
	}
	if msgs[1].Role != openai.ChatMessageRoleAssistant || msgs[1].Content != "approved answer" {
		t.Fatalf("provider replies must map to the assistant role: %+v", msgs[1])
	}
	if msgs[2].Content != "q2" {
		t.Fatalf("unexpected last message: %+v", msgs[2])
	}
}

func TestHistoryMessagesWindowed(t *testing.T) {
	var history []chat.Message
	for i := 0; i < historyLimit+5; i++ {
		history = append(history, chat.Message{Role: chat.RolePatient, Content: "m", Oversight: chat.OversightNone})
	}
	if got := len(historyMessages(history)); got != historyLimit {
		t.Fatalf("expected window of %d, got %d", historyLimit, got)
	}
}
