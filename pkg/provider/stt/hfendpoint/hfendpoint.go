// Package hfendpoint provides a transcriber backed by a Hugging Face
// Inference Endpoint running an automatic-speech-recognition model.
//
// The endpoint accepts the raw WAV file as the request body and answers with
// a JSON object whose "text" field holds the transcript.
package hfendpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/sttdata/pkg/audio"
	"github.com/MrWong99/sttdata/pkg/provider/stt"
)

const defaultTimeout = 60 * time.Second

// maxErrorBody bounds how much of an error response is quoted.
const maxErrorBody = 512

var _ stt.Transcriber = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(p *Provider) {
		p.headers.Set(key, value)
	}
}

// Provider implements stt.Transcriber against one endpoint URL.
type Provider struct {
	endpoint   string
	token      string
	headers    http.Header
	httpClient *http.Client
}

// New returns a Provider for endpoint. token may be empty for public
// endpoints; otherwise it is sent as a Bearer token.
func New(endpoint, token string, opts ...Option) (*Provider, error) {
	if endpoint == "" {
		return nil, errors.New("hfendpoint: endpoint must not be empty")
	}
	p := &Provider{
		endpoint:   endpoint,
		token:      token,
		headers:    http.Header{},
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe posts pcm as an audio/wav body. A response without a "text"
// field yields an empty transcript.
func (p *Provider) Transcribe(ctx context.Context, pcm audio.PCM) (string, error) {
	if len(pcm.Data) == 0 {
		return "", fmt.Errorf("hfendpoint: %w", stt.ErrEmptyAudio)
	}
	wav, err := audio.EncodeWAV(pcm)
	if err != nil {
		return "", fmt.Errorf("hfendpoint: encode wav: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(wav))
	if err != nil {
		return "", fmt.Errorf("hfendpoint: create request: %w", err)
	}
	for k, vs := range p.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "audio/wav")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("hfendpoint: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("hfendpoint: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("hfendpoint: parse JSON response: %w", err)
	}
	return result.Text, nil
}
