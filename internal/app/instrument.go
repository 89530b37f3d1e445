package app

import (
	"context"

	"github.com/MrWong99/sttdata/internal/observe"
	"github.com/MrWong99/sttdata/pkg/audio"
	"github.com/MrWong99/sttdata/pkg/provider/llm"
	"github.com/MrWong99/sttdata/pkg/provider/stt"
)

// InstrumentSTT counts requests and errors of t under the given provider
// name.
func InstrumentSTT(name string, t stt.Transcriber, m *observe.Metrics) stt.Transcriber {
	return stt.TranscriberFunc(func(ctx context.Context, pcm audio.PCM) (string, error) {
		text, err := t.Transcribe(ctx, pcm)
		record(ctx, m, name, "stt", err)
		return text, err
	})
}

// InstrumentLLM counts requests and errors of p under the given provider
// name.
func InstrumentLLM(name string, p llm.Provider, m *observe.Metrics) llm.Provider {
	return &instrumentedLLM{name: name, next: p, metrics: m}
}

type instrumentedLLM struct {
	name    string
	next    llm.Provider
	metrics *observe.Metrics
}

func (p *instrumentedLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.next.Complete(ctx, req)
	record(ctx, p.metrics, p.name, "llm", err)
	return resp, err
}

func (p *instrumentedLLM) Capabilities() llm.ModelCapabilities { return p.next.Capabilities() }

func record(ctx context.Context, m *observe.Metrics, name, kind string, err error) {
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		m.RecordProviderRequest(ctx, name, kind, "error")
		m.RecordProviderError(ctx, name, kind)
		return
	}
	m.RecordProviderRequest(ctx, name, kind, "ok")
}
