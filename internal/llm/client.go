// Package llm provides the hosted generation client used for answer
// synthesis.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"deckbrain/internal/rag"
)

const systemPrompt = "You are a study assistant. Answer the question using ONLY the provided " +
	"context passages. Each passage is numbered; cite the passages you draw from inline " +
	"using their numbers, like [1] or [2]. If the context does not contain enough " +
	"information to answer, say so instead of guessing."

// Client generates answers with a hosted chat completion model.
// It implements the rag.Generator interface.
type Client struct {
	client openai.Client
	model  string
}

// NewClient creates a generation client.
func NewClient(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	return &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

// Generate produces an answer for the question from the packed context.
func (c *Client) Generate(ctx context.Context, question string, packed rag.PackedContext) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildPrompt(question, packed)),
		},
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// buildPrompt enumerates the packed chunks by citation index under the
// question.
func buildPrompt(question string, packed rag.PackedContext) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nContext passages:\n")
	for _, chunk := range packed.Chunks {
		fmt.Fprintf(&b, "\n[%d] %s\n", chunk.CitationIndex, chunk.Text)
	}
	return b.String()
}
