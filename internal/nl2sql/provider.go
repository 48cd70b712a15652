package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
)

// Completion parameters shared by both provider variants.
const (
	MaxTokens   = 512
	Temperature = 0.1
)

// Kind names one of the two provider variants.
type Kind string

const (
	KindCloud Kind = "cloud"
	KindLocal Kind = "local"
)

// ParseKind accepts the variant names and the backends they default to.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cloud", "groq":
		return KindCloud, nil
	case "local", "ollama":
		return KindLocal, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, raw)
	}
}

// Provider sends one completion request and returns the raw model text. It
// never returns partial text alongside an error.
type Provider interface {
	Kind() Kind
	Complete(ctx context.Context, systemPrompt, userMessage, model string) (string, error)
}

// Catalog lists the models offered per provider kind. The first model is the
// default.
type Catalog map[Kind][]string

func (c Catalog) Models(kind Kind) []string {
	models := c[kind]
	out := make([]string, len(models))
	copy(out, models)
	return out
}

func (c Catalog) DefaultModel(kind Kind) string {
	if models := c[kind]; len(models) > 0 {
		return models[0]
	}
	return ""
}

func (c Catalog) Kinds() []Kind {
	kinds := make([]Kind, 0, len(c))
	for kind := range c {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// classifyTransportError maps a failed round trip to ProviderUnavailable.
// Caller cancellation is returned as is.
func classifyTransportError(kind Kind, endpoint string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s provider request: %w", kind, err)
	}
	reason := ReasonUnreachable
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		reason = ReasonTimeout
	}
	return &ProviderUnavailable{Provider: kind, Endpoint: endpoint, Reason: reason, Cause: err}
}
