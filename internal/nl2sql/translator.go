package nl2sql

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/schema"
)

type Request struct {
	NaturalLanguage string
	DatabaseName    string
	Schema          schema.Snapshot
	Provider        Kind
	Model           string
}

type State string

const (
	StateAccepted State = "accepted"
	StateRejected State = "rejected"
	StateFailed   State = "failed"
)

// Outcome is the terminal state of one translation. SQL is set for accepted
// and rejected outcomes.
type Outcome struct {
	State    State
	SQL      string
	Verdict  Verdict
	Provider Kind
	Model    string
	Elapsed  time.Duration
}

// Translator runs prompt, completion, sanitize and validate in sequence. It
// neither retries nor falls back to another provider.
type Translator struct {
	prompts   PromptBuilder
	catalog   Catalog
	providers map[Kind]Provider
	logger    *slog.Logger
}

func NewTranslator(prompts PromptBuilder, catalog Catalog, logger *slog.Logger, providers ...Provider) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	registry := make(map[Kind]Provider, len(providers))
	for _, provider := range providers {
		registry[provider.Kind()] = provider
	}
	return &Translator{
		prompts:   prompts,
		catalog:   catalog,
		providers: registry,
		logger:    logger,
	}
}

// Catalog returns the models of every configured provider.
func (t *Translator) Catalog() Catalog {
	out := make(Catalog, len(t.providers))
	for kind := range t.providers {
		out[kind] = t.catalog.Models(kind)
	}
	return out
}

func (t *Translator) Translate(ctx context.Context, req Request) (Outcome, error) {
	start := time.Now()
	provider, ok := t.providers[req.Provider]
	if !ok {
		return Outcome{State: StateFailed, Provider: req.Provider}, fmt.Errorf("%w: %q", ErrUnknownProvider, req.Provider)
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = t.catalog.DefaultModel(req.Provider)
	}
	if model == "" {
		return Outcome{State: StateFailed, Provider: req.Provider}, fmt.Errorf("model is required for %s provider", req.Provider)
	}

	systemPrompt := t.prompts.BuildSystemPrompt(req.Schema, req.DatabaseName)
	userMessage := BuildUserMessage(req.DatabaseName, req.NaturalLanguage)

	callStart := time.Now()
	raw, err := provider.Complete(ctx, systemPrompt, userMessage, model)
	observability.ObserveProviderLatency(string(req.Provider), err, time.Since(callStart))
	if err != nil {
		outcome := Outcome{State: StateFailed, Provider: req.Provider, Model: model, Elapsed: time.Since(start)}
		t.record(ctx, req, outcome)
		t.logger.WarnContext(ctx, "translation failed", append(observability.LogAttrs(ctx),
			slog.String("provider", string(req.Provider)),
			slog.String("model", model),
			slog.String("error", err.Error()),
		)...)
		return outcome, err
	}

	candidate := Sanitize(raw)
	verdict := Validate(candidate)
	outcome := Outcome{
		State:    StateAccepted,
		SQL:      candidate,
		Verdict:  verdict,
		Provider: req.Provider,
		Model:    model,
		Elapsed:  time.Since(start),
	}
	if !verdict.Accepted {
		outcome.State = StateRejected
	}
	t.record(ctx, req, outcome)
	return outcome, nil
}

func (t *Translator) record(ctx context.Context, req Request, outcome Outcome) {
	observability.ObserveTranslation(string(req.Provider), string(outcome.State), outcome.Elapsed)
	if outcome.State == StateFailed {
		return
	}
	t.logger.InfoContext(ctx, "translation finished", append(observability.LogAttrs(ctx),
		slog.String("database", req.DatabaseName),
		slog.String("provider", string(req.Provider)),
		slog.String("model", outcome.Model),
		slog.String("state", string(outcome.State)),
		slog.String("reason", outcome.Verdict.Reason),
		slog.String("duration", outcome.Elapsed.String()),
	)...)
	t.logger.DebugContext(ctx, "translation sql", slog.String("sql", outcome.SQL))
}
