// Package anyllm adapts the backends of github.com/mozilla-ai/any-llm-go to
// [llm.Provider].
//
// Every hosted backend carries a default model that is cheap and fast enough
// for one-line transcript rewrites, so a config entry may leave the model
// empty. Gemini is the backend the correction prompts were written against:
//
//	p, err := anyllm.New("gemini", "", anyllmlib.WithAPIKey("..."))
package anyllm

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/MrWong99/sttdata/pkg/provider/llm"
)

// ErrNoChoices is returned when a backend answers without any completion.
var ErrNoChoices = errors.New("anyllm: response has no choices")

type backend struct {
	create       func(opts ...anyllmlib.Option) (anyllmlib.Provider, error)
	defaultModel string

	// local backends talk to a self-hosted server and take no API key.
	local bool
}

var backends = map[string]backend{
	"gemini": {
		create:       func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return gemini.New(o...) },
		defaultModel: "gemini-2.0-flash",
	},
	"openai": {
		create:       func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return anyllmoai.New(o...) },
		defaultModel: "gpt-4o-mini",
	},
	"anthropic": {
		create:       func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return anthropic.New(o...) },
		defaultModel: "claude-3-5-haiku-latest",
	},
	"deepseek": {
		create:       func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return deepseek.New(o...) },
		defaultModel: "deepseek-chat",
	},
	"mistral": {
		create:       func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return mistral.New(o...) },
		defaultModel: "mistral-small-latest",
	},
	"groq": {
		create:       func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return groq.New(o...) },
		defaultModel: "llama-3.3-70b-versatile",
	},
	"ollama": {
		create:       func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return ollama.New(o...) },
		defaultModel: "llama3.2",
		local:        true,
	},
	// llama.cpp and llamafile serve whatever model they were started with;
	// the entry must still name it.
	"llamacpp": {
		create: func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return llamacpp.New(o...) },
		local:  true,
	},
	"llamafile": {
		create: func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return llamafile.New(o...) },
		local:  true,
	},
}

// Backends returns the supported backend names in sorted order.
func Backends() []string {
	return slices.Sorted(maps.Keys(backends))
}

// DefaultModel returns the model New uses for name when none is given, or ""
// if the backend has no default.
func DefaultModel(name string) string {
	return backends[strings.ToLower(name)].defaultModel
}

// NeedsAPIKey reports whether the backend authenticates with an API key.
func NeedsAPIKey(name string) bool {
	b, ok := backends[strings.ToLower(name)]
	return ok && !b.local
}

// Provider implements [llm.Provider] on top of one any-llm-go backend.
type Provider struct {
	name    string
	backend anyllmlib.Provider
	model   string
}

var _ llm.Provider = (*Provider)(nil)

// New creates a Provider for the named backend (see [Backends]). An empty
// model selects the backend's [DefaultModel]. Without an API key option the
// backend reads its usual environment variable, e.g. GEMINI_API_KEY.
func New(name, model string, opts ...anyllmlib.Option) (*Provider, error) {
	name = strings.ToLower(name)
	b, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("anyllm: unsupported backend %q; supported: %s", name, strings.Join(Backends(), ", "))
	}
	if model == "" {
		model = b.defaultModel
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: %s: model must be set", name)
	}

	be, err := b.create(opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %s backend: %w", name, err)
	}
	return &Provider{name: name, backend: be, model: model}, nil
}

// Model returns the model requests are sent to.
func (p *Provider) Model() string { return p.model }

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.backend.Completion(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anyllm: %s completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w (%s/%s)", ErrNoChoices, p.name, p.model)
	}

	out := &llm.CompletionResponse{Content: resp.Choices[0].Message.ContentString()}
	if u := resp.Usage; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return out, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return modelCapabilities(p.model)
}

func (p *Provider) buildParams(req llm.CompletionRequest) anyllmlib.CompletionParams {
	messages := make([]anyllmlib.Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		messages = append(messages, convertMessage(m))
	}

	params := anyllmlib.CompletionParams{Model: p.model, Messages: messages}
	if req.Temperature != 0 {
		t := req.Temperature
		params.Temperature = &t
	}
	if req.MaxTokens > 0 {
		mt := req.MaxTokens
		params.MaxTokens = &mt
	}
	return params
}

func convertMessage(m llm.Message) anyllmlib.Message {
	return anyllmlib.Message{Role: m.Role, Content: m.Content}
}

// capabilityRules are matched by model prefix, first match wins.
var capabilityRules = []struct {
	prefix string
	caps   llm.ModelCapabilities
}{
	{"gemini-1.5-pro", llm.ModelCapabilities{ContextWindow: 2_097_152, MaxOutputTokens: 8_192}},
	{"gemini", llm.ModelCapabilities{ContextWindow: 1_048_576, MaxOutputTokens: 8_192}},
	{"gpt-4o", llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 16_384}},
	{"gpt-4-turbo", llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096}},
	{"gpt-4", llm.ModelCapabilities{ContextWindow: 8_192, MaxOutputTokens: 4_096}},
	{"o1", llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 100_000}},
	{"o3", llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 100_000}},
	{"claude-3-opus", llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 4_096}},
	{"claude", llm.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 8_192}},
	{"deepseek", llm.ModelCapabilities{ContextWindow: 64_000, MaxOutputTokens: 8_192}},
}

// modelCapabilities returns the limits of model. Unknown models get a
// 128k window and 4k output.
func modelCapabilities(model string) llm.ModelCapabilities {
	lower := strings.ToLower(model)
	for _, r := range capabilityRules {
		if strings.HasPrefix(lower, r.prefix) {
			return r.caps
		}
	}
	return llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096}
}
