// Package openai provides a transcriber backed by the OpenAI audio
// transcription API or any server that mirrors it.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/sttdata/pkg/audio"
	"github.com/MrWong99/sttdata/pkg/provider/stt"
)

const defaultModel = oai.AudioModelWhisper1

var _ stt.Transcriber = (*Provider)(nil)

type config struct {
	model      string
	language   string
	prompt     string
	baseURL    string
	maxRetries int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithModel selects the transcription model. Defaults to whisper-1.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithLanguage sets the ISO-639-1 language hint.
func WithLanguage(lang string) Option {
	return func(c *config) { c.language = lang }
}

// WithPrompt sets a text prompt that biases the model's spelling.
func WithPrompt(prompt string) Option {
	return func(c *config) { c.prompt = prompt }
}

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithMaxRetries sets how often the SDK retries transient failures.
// Negative values keep the SDK default.
func WithMaxRetries(n int) Option {
	return func(c *config) { c.maxRetries = n }
}

// Provider implements stt.Transcriber using the OpenAI SDK.
type Provider struct {
	client   oai.Client
	model    string
	language string
	prompt   string
}

// New constructs a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai stt: apiKey must not be empty")
	}
	cfg := &config{model: defaultModel, maxRetries: -1}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.maxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(cfg.maxRetries))
	}

	return &Provider{
		client:   oai.NewClient(reqOpts...),
		model:    cfg.model,
		language: cfg.language,
		prompt:   cfg.prompt,
	}, nil
}

// Transcribe uploads pcm as a WAV file and returns the transcript text.
func (p *Provider) Transcribe(ctx context.Context, pcm audio.PCM) (string, error) {
	if len(pcm.Data) == 0 {
		return "", fmt.Errorf("openai stt: %w", stt.ErrEmptyAudio)
	}
	wav, err := audio.EncodeWAV(pcm)
	if err != nil {
		return "", fmt.Errorf("openai stt: encode wav: %w", err)
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "segment.wav", "audio/wav"),
		Model: p.model,
	}
	if p.language != "" {
		params.Language = param.NewOpt(p.language)
	}
	if p.prompt != "" {
		params.Prompt = param.NewOpt(p.prompt)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai stt: transcribe: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
