// Package chat produces assistant replies for the website chatbot.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/domain"
	"github.com/jordanlanch/estatecrm/pkg/logger"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"github.com/sashabaranov/go-openai"
)

// Roles stored on schema.ChatMessage.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// maxHistory bounds how many past messages are sent to the model.
const maxHistory = 20

// DefaultSystemPrompt frames the assistant as a real-estate receptionist.
const DefaultSystemPrompt = `You are the website assistant of a real-estate agency.
Help visitors find properties to rent or buy, answer briefly and politely,
and ask for their name, phone or email so an agent can follow up.
Never invent listings, prices or availability.`

// Config for the OpenAI responder
type Config struct {
	APIKey       string
	Model        string // default: gpt-4o-mini
	BaseURL      string // optional, for compatible gateways
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
}

// OpenAIResponder answers through the chat completions API.
type OpenAIResponder struct {
	client       *openai.Client
	model        string
	temperature  float32
	maxTokens    int
	systemPrompt string
	log          logger.Logger
}

// NewOpenAIResponder creates a responder backed by OpenAI
func NewOpenAIResponder(cfg Config, log logger.Logger) *OpenAIResponder {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.4
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 300
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	return &OpenAIResponder{
		client:       openai.NewClientWithConfig(oc),
		model:        cfg.Model,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		systemPrompt: cfg.SystemPrompt,
		log:          logger.OrNop(log),
	}
}

// Name identifies the responder in metrics.
func (r *OpenAIResponder) Name() string { return "openai" }

// Reply sends the recent history to the model and returns its answer.
func (r *OpenAIResponder) Reply(ctx context.Context, history []schema.ChatMessage) (string, error) {
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: r.systemPrompt,
	})
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	start := time.Now()
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Messages:    messages,
		Temperature: r.temperature,
		MaxTokens:   r.maxTokens,
	})
	if err != nil {
		r.log.Error("openai chat failed", "error", err, "duration", time.Since(start).String())
		return "", fmt.Errorf("openai chat failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from openai")
	}

	r.log.Debug("openai chat completed", "tokens", resp.Usage.TotalTokens, "duration", time.Since(start).String())
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// CannedResponder answers from a fixed set of keyword rules.
type CannedResponder struct{}

// Name identifies the responder in metrics.
func (CannedResponder) Name() string { return "canned" }

var cannedRules = []struct {
	keywords []string
	reply    string
}{
	{[]string{"rent", "lease", "tenant"}, "We have several rentals available. Which city and budget do you have in mind? Leave your phone or email and an agent will send you matching listings."},
	{[]string{"buy", "purchase", "sale", "sell"}, "Great! Tell us the area, property type and budget you are considering and one of our agents will prepare a selection for you."},
	{[]string{"price", "cost", "budget", "how much"}, "Prices depend on location and size. Share your budget range and preferred district so we can suggest the best options."},
	{[]string{"visit", "viewing", "see the", "appointment"}, "We would be happy to arrange a viewing. Please leave your phone number and preferred time and an agent will confirm."},
	{[]string{"hello", "hi ", "hey", "good morning", "good afternoon"}, "Hello! How can we help you with your property search today?"},
}

const cannedDefault = "Thank you for your message! An agent will get back to you shortly. Could you share your phone number or email so we can reach you?"

// Reply matches the latest visitor message against the keyword rules.
func (CannedResponder) Reply(_ context.Context, history []schema.ChatMessage) (string, error) {
	last := ""
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser {
			last = " " + strings.ToLower(history[i].Content) + " "
			break
		}
	}
	for _, rule := range cannedRules {
		for _, kw := range rule.keywords {
			if strings.Contains(last, kw) {
				return rule.reply, nil
			}
		}
	}
	return cannedDefault, nil
}

// Fallback tries primary and answers with secondary when it fails.
type Fallback struct {
	primary   domain.ChatResponder
	secondary domain.ChatResponder
	log       logger.Logger
}

// Name reports the primary responder.
func (f *Fallback) Name() string { return f.primary.Name() }

// Reply returns the primary answer, or the secondary one on error.
func (f *Fallback) Reply(ctx context.Context, history []schema.ChatMessage) (string, error) {
	reply, err := f.primary.Reply(ctx, history)
	if err == nil && reply != "" {
		return reply, nil
	}
	f.log.Warn("chat responder failed, using fallback", "responder", f.primary.Name(), "error", err)
	return f.secondary.Reply(ctx, history)
}

// New returns an OpenAI responder with canned fallback when cfg.APIKey is set,
// and the canned responder otherwise.
func New(cfg Config, log logger.Logger) domain.ChatResponder {
	log = logger.OrNop(log)
	if cfg.APIKey == "" {
		log.Warn("chatbot in canned-reply mode (set OPENAI_API_KEY to enable OpenAI)")
		return CannedResponder{}
	}
	return &Fallback{primary: NewOpenAIResponder(cfg, log), secondary: CannedResponder{}, log: log}
}
