package translator

import (
	"context"
	"fmt"
	"html"
	"time"

	translate "cloud.google.com/go/translate"
	"google.golang.org/api/option"
)

// GoogleService uses Cloud Translation. It has no notion of a glossary
// excerpt or system prompt; those parts of a request are ignored.
type GoogleService struct {
	credentials string
	apiKey      string
}

func NewGoogleService(credentials, apiKey string) *GoogleService {
	return &GoogleService{credentials: credentials, apiKey: apiKey}
}

func (s *GoogleService) Name() string {
	return "google"
}

func (s *GoogleService) options() []option.ClientOption {
	var opts []option.ClientOption
	if s.credentials != "" {
		opts = append(opts, option.WithCredentialsFile(s.credentials))
	}
	if s.apiKey != "" {
		opts = append(opts, option.WithAPIKey(s.apiKey))
	}
	return opts
}

func (s *GoogleService) Submit(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	target, err := ParseLocale(req.TargetLocale)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid target language: %v", ErrUnavailable, err)
	}
	source, err := ParseLocale(req.SourceLocale)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid source language: %v", ErrUnavailable, err)
	}

	client, err := translate.NewClient(ctx, s.options()...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create client: %v", ErrUnavailable, err)
	}
	defer client.Close()

	texts := make([]string, len(req.Items))
	tokens := 0
	for i, it := range req.Items {
		texts[i] = it.Text
		tokens += EstimateTokens(it.Text)
	}

	translations, err := client.Translate(ctx, texts, target, &translate.Options{
		Source: source,
		Format: translate.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("translation failed: %w", err)
	}
	if len(translations) != len(req.Items) {
		return nil, fmt.Errorf("got %d translations for %d texts", len(translations), len(req.Items))
	}

	out := make(map[string]string, len(translations))
	outTokens := 0
	for i, t := range translations {
		text := html.UnescapeString(t.Text)
		out[req.Items[i].ID] = text
		outTokens += EstimateTokens(text)
	}
	return &Response{
		Translations: out,
		Usage:        Usage{InputTokens: tokens, OutputTokens: outTokens},
		Model:        "cloud-translation",
		Latency:      time.Since(start),
	}, nil
}
