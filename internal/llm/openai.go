package llm

import (
	"context"
	"errors"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// Message is a minimal chat message used by the core orchestrator.
// Role must be one of: "system", "user", or "assistant".
type Message struct {
	Role    string
	Content string
}

// Client defines the methods the orchestrator, extractor and summariser need
// from the inference backend. Chat accepts the full message history (system +
// prior turns + latest patient message) and runs under the doctor-reply
// generation budget. Complete is a single system+user exchange used for
// structured extraction and visit summaries, which need a larger output
// window than a chat reply.
type Client interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Complete(ctx context.Context, system, user string) (string, error)
}

// OpenAIClient calls the OpenAI API for doctor replies, extraction and
// summarisation. API credentials and model names are loaded from environment
// variables.
type OpenAIClient struct {
	client       *openai.Client
	chatModel    string
	summaryModel string
}

// Generation budget for doctor replies: low temperature for consistent
// bedside manner, short max length so replies stay within the four-sentence
// window the shaper enforces.
const (
	chatTemperature = 0.25
	chatMaxTokens   = 120
)

// NewOpenAIClient constructs an OpenAI-backed LLM client. It reads the API key
// and model names from the environment and falls back to sensible defaults.
func NewOpenAIClient() *OpenAIClient {
	apiKey := os.Getenv("OPENAI_API_KEY")
	c := openai.NewClient(apiKey)

	chatModel := os.Getenv("OPENAI_MODEL_CHAT")
	if chatModel == "" {
		chatModel = "gpt-4o-mini"
	}
	summaryModel := os.Getenv("OPENAI_MODEL_SUMMARY")
	if summaryModel == "" {
		summaryModel = chatModel
	}

	return &OpenAIClient{
		client:       c,
		chatModel:    chatModel,
		summaryModel: summaryModel,
	}
}

// Chat sends the message history to the chat completion API and returns the
// assistant's response.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message) (string, error) {
	if c.client == nil {
		return "", errors.New("openai client not initialized")
	}

	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role != openai.ChatMessageRoleSystem && role != openai.ChatMessageRoleUser && role != openai.ChatMessageRoleAssistant {
			// coerce anything unknown to user
			role = openai.ChatMessageRoleUser
		}
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    oaMsgs,
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// Complete runs a single system+user exchange against the summary model.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	if c.client == nil {
		return "", errors.New("openai client not initialized")
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.summaryModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
