// Package responder produces the reply for an inbound message: a
// deterministic intent rule when one matches, otherwise a budget-gated
// generative fallback with short-term conversational memory. Every
// failure path inside the fallback resolves to a safe canned reply;
// orchestration itself never returns an error to the ingress pipeline.
package responder

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"github.com/leadline/internal/budget"
	"github.com/leadline/internal/intent"
	"github.com/leadline/internal/memory"
)

// Reply sources.
const (
	SourceRule = "rule"
	SourceAI   = "ai"
)

// Degraded-path replies. Returned with zero token cost when the
// generative tier is gated or fails.
const (
	budgetExhaustedReply = "I'm having trouble understanding that. Could you please rephrase, or type *agent* to speak with a human?"
	rateLimitedReply     = "You've reached the message limit for this hour. Please try again later or type *agent* for human support."
	unavailableReply     = "I'm unable to process your request right now. Type *agent* to speak with a human."
	emptyModelReply      = "I could not generate a response."
)

const defaultSystemPrompt = `You are a helpful WhatsApp customer support assistant. Be concise, friendly, and professional.
Use simple language. Keep responses under 200 words.
If you cannot help, suggest typing "agent" to reach a human.`

// Reply is the outcome of one orchestration call.
type Reply struct {
	Text       string
	Intent     string
	TokensUsed int
	Source     string
}

// Responder is the two-tier response orchestrator.
type Responder struct {
	llm         llms.Model
	governor    *budget.Governor
	memory      *memory.Store
	maxTokens   int
	temperature float64
	timeout     time.Duration
	system      string
}

// New creates a responder. A nil llm disables the generative tier; rule
// matches still work and everything else degrades to the unavailable
// reply.
func New(llm llms.Model, governor *budget.Governor, mem *memory.Store, maxTokens int, temperature float64, timeout time.Duration) *Responder {
	if maxTokens <= 0 {
		maxTokens = 300
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Responder{
		llm:         llm,
		governor:    governor,
		memory:      mem,
		maxTokens:   maxTokens,
		temperature: temperature,
		timeout:     timeout,
		system:      defaultSystemPrompt,
	}
}

// Respond generates the reply for one inbound message. Rule matches are
// free and never touch the model; the generative fallback is gated by the
// global daily budget and the sender's hourly quota.
func (r *Responder) Respond(ctx context.Context, sessionID string, userID int64, text string) Reply {
	if name := intent.Detect(text); name != "" {
		if canned := intent.Response(name); canned != "" {
			return Reply{Text: canned, Intent: name, TokensUsed: 0, Source: SourceRule}
		}
	}

	return r.generate(ctx, sessionID, userID, text)
}

func (r *Responder) generate(ctx context.Context, sessionID string, userID int64, text string) Reply {
	reply := Reply{Intent: "ai_fallback", Source: SourceAI}

	if r.governor.DailyBudgetExceeded(ctx) {
		log.Warn().Msg("Daily token budget exceeded, using degraded reply")
		reply.Text = budgetExhaustedReply
		return reply
	}

	if r.governor.UserRateLimited(ctx, userID) {
		reply.Text = rateLimitedReply
		return reply
	}

	if r.llm == nil {
		reply.Text = unavailableReply
		return reply
	}

	history := r.memory.Load(ctx, sessionID)

	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, r.system))
	for _, turn := range history {
		role := llms.ChatMessageTypeHuman
		if turn.Role == "assistant" {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, turn.Content))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, text))

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.llm.GenerateContent(callCtx, messages,
		llms.WithMaxTokens(r.maxTokens),
		llms.WithTemperature(r.temperature),
	)
	if err != nil {
		log.Error().Err(err).Msg("Generative call failed")
		reply.Text = unavailableReply
		return reply
	}
	if len(resp.Choices) == 0 {
		log.Error().Msg("Generative call returned no choices")
		reply.Text = unavailableReply
		return reply
	}

	choice := resp.Choices[0]
	reply.Text = choice.Content
	if reply.Text == "" {
		reply.Text = emptyModelReply
	}
	reply.TokensUsed = totalTokens(choice)

	updated := append(history,
		memory.Utterance{Role: "user", Content: text},
		memory.Utterance{Role: "assistant", Content: reply.Text},
	)
	r.memory.Save(ctx, sessionID, updated)
	r.governor.RecordUsage(ctx, userID, int64(reply.TokensUsed))

	return reply
}

// SetSystemPrompt overrides the default system instruction.
func (r *Responder) SetSystemPrompt(prompt string) {
	if prompt != "" {
		r.system = prompt
	}
}
