// Package translator defines the LLM capability the pipeline submits batches
// to, and the providers that implement it.
package translator

import (
	"context"
	"errors"
	"time"

	"github.com/valpere/packtran/internal/glossary"
)

// Config selects and configures a provider.
type Config struct {
	Provider    string        `mapstructure:"provider" json:"provider"`
	APIKey      string        `mapstructure:"api_key" json:"api_key"`
	Model       string        `mapstructure:"model" json:"model"`
	BaseURL     string        `mapstructure:"base_url" json:"base_url"`
	Credentials string        `mapstructure:"credentials" json:"credentials"`
	Temperature float64       `mapstructure:"temperature" json:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
	RPM         int           `mapstructure:"rpm" json:"rpm"`
	TPM         int           `mapstructure:"tpm" json:"tpm"`
}

// Item is one string in a request. IDs are local to the request.
type Item struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	// Source is set when Text is a draft translation to be reviewed.
	Source string `json:"source,omitempty"`
	// PrevError is why the previous attempt for this item was rejected.
	PrevError string `json:"previous_error,omitempty"`
}

// Request is one submission to a capability.
type Request struct {
	SourceLocale string
	TargetLocale string
	SystemPrompt string
	Glossary     []glossary.TermRule
	Items        []Item
}

// Usage counts tokens spent on a request.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is what a capability returned. Chat providers fill Raw and leave
// Translations nil; providers with a structured API fill Translations.
type Response struct {
	Raw          string
	Translations map[string]string
	Usage        Usage
	Model        string
	Latency      time.Duration
}

// Capability submits a request to a translation backend.
type Capability interface {
	Name() string
	Submit(ctx context.Context, req Request) (*Response, error)
}

// Pinger is implemented by capabilities that support a pre-flight check.
type Pinger interface {
	IsAvailable(ctx context.Context) error
}

// ErrUnavailable is wrapped by providers when the backend rejects every
// request regardless of content: bad credentials or an unknown model.
var ErrUnavailable = errors.New("provider unavailable")

// CapabilityFunc adapts a function to Capability.
type CapabilityFunc func(ctx context.Context, req Request) (*Response, error)

func (f CapabilityFunc) Name() string { return "func" }

func (f CapabilityFunc) Submit(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Check runs the pre-flight check when c supports one.
func Check(ctx context.Context, c Capability) error {
	p, ok := c.(Pinger)
	if !ok {
		return nil
	}
	return p.IsAvailable(ctx)
}
