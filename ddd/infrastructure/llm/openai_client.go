package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"manim-service/ddd/domain/gateway"
	"manim-service/pkg/config"
	"manim-service/pkg/logger"
)

// ErrEmptyCompletion is returned when the model answers without content.
var ErrEmptyCompletion = errors.New("language model returned no choices")

// OpenAIClient implements gateway.LanguageModel and gateway.SpeechSynthesizer.
type OpenAIClient struct {
	chat        *openai.Client
	speech      *openai.Client
	chatModel   string
	temperature float32
	ttsModel    openai.SpeechModel
	voice       openai.SpeechVoice
}

var (
	_ gateway.LanguageModel     = (*OpenAIClient)(nil)
	_ gateway.SpeechSynthesizer = (*OpenAIClient)(nil)
)

func NewOpenAIClient(cfg *config.Config) *OpenAIClient {
	if cfg == nil {
		cfg = config.GetGlobalConfig()
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	timeout := cfg.OpenAI.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	httpClient := &http.Client{Timeout: timeout}

	newClient := func(key string) *openai.Client {
		c := openai.DefaultConfig(key)
		if base := strings.TrimSpace(cfg.OpenAI.BaseURL); base != "" {
			c.BaseURL = strings.TrimRight(base, "/")
		}
		c.HTTPClient = httpClient
		return openai.NewClientWithConfig(c)
	}

	ttsKey := cfg.TTS.APIKey
	if strings.TrimSpace(ttsKey) == "" {
		ttsKey = cfg.OpenAI.APIKey
	}
	return &OpenAIClient{
		chat:        newClient(cfg.OpenAI.APIKey),
		speech:      newClient(ttsKey),
		chatModel:   cfg.OpenAI.ChatModel,
		temperature: cfg.OpenAI.Temperature,
		ttsModel:    openai.SpeechModel(cfg.TTS.Model),
		voice:       openai.SpeechVoice(cfg.TTS.Voice),
	}
}

// Complete sends one system and one user message and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	start := time.Now()
	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Temperature: wireTemperature(c.temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", describe(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	logger.Debug("chat completion finished", map[string]interface{}{
		"model":             c.chatModel,
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
		"elapsed":           time.Since(start).String(),
	})
	return resp.Choices[0].Message.Content, nil
}

// wireTemperature keeps an explicit 0 on the wire; the request field is
// omitempty, so a plain 0 would fall back to the server default.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

// Synthesize writes mp3 speech for text to outPath.
func (c *OpenAIClient) Synthesize(ctx context.Context, text, outPath string) error {
	body, err := c.speech.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          c.ttsModel,
		Input:          text,
		Voice:          c.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return fmt.Errorf("TTS failed: %w", describe(err))
	}
	defer body.Close()

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create audio file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		return fmt.Errorf("write audio file: %w", err)
	}
	return f.Close()
}

// describe keeps the status code of API errors in the message shown on the job.
func describe(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%d %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%d %v", reqErr.HTTPStatusCode, reqErr.Err)
	}
	return err
}
