// Package llm is the boundary to the language-model provider. Callers get
// either validated output or a *ProviderError; they never parse raw failures.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	System   string
	Messages []Message
	// JSON asks the provider for a single JSON document.
	JSON        bool
	Temperature *float32
}

type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
	Stream(ctx context.Context, req Request, emit func(chunk string) error) error
}

type ErrorKind string

const (
	KindUnavailable   ErrorKind = "unavailable"
	KindTimeout       ErrorKind = "timeout"
	KindInvalidOutput ErrorKind = "invalid_output"
	KindRefused       ErrorKind = "refused"
)

type ProviderError struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("llm %s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("llm %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// MetricReason keeps the metric label set bounded.
func (e *ProviderError) MetricReason() string { return "llm_" + string(e.Kind) }

var ErrNotConfigured = errors.New("llm_not_configured")

// Classify wraps err in a ProviderError unless it already is one.
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	kind := KindUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &ProviderError{Kind: kind, Provider: provider, Err: err}
}

// DecodeJSON parses a model response into v. Markdown code fences and
// prose around the outermost object are tolerated.
func DecodeJSON(provider, raw string, v any) error {
	body := strings.TrimSpace(raw)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)

	if start, end := strings.IndexAny(body, "{["), strings.LastIndexAny(body, "}]"); start >= 0 && end > start {
		body = body[start : end+1]
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return &ProviderError{Kind: KindInvalidOutput, Provider: provider, Err: err}
	}
	return nil
}

// IsProviderError reports whether err came from the provider boundary.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
