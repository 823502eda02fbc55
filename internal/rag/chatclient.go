package rag

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"screensearch/internal/config"
	"screensearch/internal/llmclient"
)

// httpChatClient talks to a local llama.cpp/Ollama-compatible
// completion endpoint, folding the system prompt into the user prompt
// since that backend has no separate system-role concept.
type httpChatClient struct {
	inner *llmclient.Client
}

func (c *httpChatClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.inner.GetResponseWithImages(systemPrompt+"\n\n"+userPrompt, nil)
}

// openaiChatClient talks to any OpenAI-compatible chat-completions
// endpoint.
type openaiChatClient struct {
	client *openai.Client
	model  string
}

func (c *openaiChatClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("rag: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("rag: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// NewChatClient builds the RAG assembler's chat backend from the same
// provider settings the vision analyzer uses, since both ultimately
// talk to "whatever model the user pointed settings at".
func NewChatClient(cfg config.VisionConfig) (ChatClient, error) {
	switch cfg.Provider {
	case "", "ollama":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "http://127.0.0.1:11434"
		}
		return &httpChatClient{inner: llmclient.NewClient(endpoint)}, nil
	case "openai":
		opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
		if cfg.Endpoint != "" {
			opts = append(opts, option.WithBaseURL(cfg.Endpoint))
		}
		client := openai.NewClient(opts...)
		return &openaiChatClient{client: &client, model: cfg.Model}, nil
	default:
		return nil, fmt.Errorf("rag: unsupported provider %q", cfg.Provider)
	}
}
