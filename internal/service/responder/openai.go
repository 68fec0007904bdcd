package responder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/AHasnain3/mamamia/internal/model/chat"
	"github.com/AHasnain3/mamamia/internal/model/oversight"
)

// Config carries the model settings for the OpenAI-backed client.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float32
}

// Enabled reports whether credentials were provided.
func (c Config) Enabled() bool { return c.APIKey != "" }

// OpenAIClient implements Client on the OpenAI chat completions API.
type OpenAIClient struct {
	client *openai.Client
	cfg    Config
}

// NewOpenAIClient builds a client from config, defaulting the model.
func NewOpenAIClient(cfg Config) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.2
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}
}

// ModelMeta describes the configured model for draft records.
func (c *OpenAIClient) ModelMeta() oversight.ModelMeta {
	return oversight.ModelMeta{Model: c.cfg.Model, Temperature: c.cfg.Temperature}
}

type verdictPayload struct {
	Reply       string `json:"reply"`
	NeedsReview bool   `json:"needsReview"`
	Reason      string `json:"reason"`
	RiskSignal  string `json:"riskSignal"`
}

// Respond asks for a JSON verdict. Missing credentials, transport failures,
// and unparseable output all degrade to a safe non-review reply.
func (c *OpenAIClient) Respond(ctx context.Context, req Request) (Verdict, error) {
	if !c.cfg.Enabled() {
		return Verdict{Reply: FallbackReply, RiskSignal: oversight.RiskGreen}, nil
	}

	messages := append(
		[]openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: verdictSystemPrompt(req)}},
		historyMessages(req.History)...,
	)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt(req),
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("responder completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Verdict{}, errors.New("responder returned no choices")
	}

	var payload verdictPayload
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &payload); err != nil || payload.Reply == "" {
		return Verdict{Reply: FallbackReply, RiskSignal: oversight.RiskGreen}, nil
	}

	signal := oversight.RiskSignal(payload.RiskSignal)
	switch signal {
	case oversight.RiskGreen, oversight.RiskYellow, oversight.RiskRed:
	default:
		signal = oversight.RiskGreen
		if payload.NeedsReview {
			signal = oversight.RiskYellow
		}
	}

	return Verdict{
		Reply:       payload.Reply,
		NeedsReview: payload.NeedsReview,
		Reason:      payload.Reason,
		RiskSignal:  signal,
	}, nil
}

// Draft produces the short provider-facing text used when escalation was
// already decided.
func (c *OpenAIClient) Draft(ctx context.Context, req Request) (string, error) {
	if !c.cfg.Enabled() {
		return "", errors.New("responder not configured")
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: draftSystemPrompt(req)},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(req)},
		},
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("responder draft: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("responder returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Stream forwards reply tokens as they arrive.
func (c *OpenAIClient) Stream(ctx context.Context, req Request) (TokenStream, error) {
	if !c.cfg.Enabled() {
		return nil, errors.New("responder not configured")
	}

	messages := append(
		[]openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: chatSystemPrompt(req.Mode)}},
		historyMessages(req.History)...,
	)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt(req),
	})

	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("responder stream: %w", err)
	}
	return &openaiStream{inner: stream}, nil
}

type openaiStream struct {
	inner *openai.ChatCompletionStream
}

func (s *openaiStream) Recv() (string, error) {
	for {
		resp, err := s.inner.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		return resp.Choices[0].Delta.Content, nil
	}
}

func (s *openaiStream) Close() { s.inner.Close() }

const historyLimit = 12

// historyMessages maps stored turns to completion messages, skipping rows a
// patient never saw as delivered content.
func historyMessages(history []chat.Message) []openai.ChatCompletionMessage {
	start := 0
	if len(history) > historyLimit {
		start = len(history) - historyLimit
	}
	out := make([]openai.ChatCompletionMessage, 0, len(history)-start)
	for _, m := range history[start:] {
		if m.Oversight == chat.OversightAwaiting {
			continue
		}
		switch m.Role {
		case chat.RolePatient:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		case chat.RoleAssistant, chat.RoleProvider:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content})
		}
	}
	return out
}
