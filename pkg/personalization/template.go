package personalization

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/channel"
)

// Template is a notification template with {{variable}} placeholders.
type Template struct {
	Slug     string          `json:"slug" yaml:"slug"`
	Channel  channel.Channel `json:"channel" yaml:"channel"`
	Type     string          `json:"type" yaml:"type"`         // Trigger slug this template answers, e.g. "quiz_abandoned"
	Category string          `json:"category" yaml:"category"` // e.g. "transactional", "marketing"
	Subject  string          `json:"subject" yaml:"subject"`
	Content  string          `json:"content" yaml:"content"`
	HTML     string          `json:"html" yaml:"html"`
	Default  bool            `json:"default" yaml:"default"`
	Active   bool            `json:"active" yaml:"active"`
}

// Promotional reports whether the template carries marketing content and is
// therefore subject to the user's marketing opt-out.
func (t Template) Promotional() bool {
	switch t.Category {
	case "marketing", "promotional", "campaign":
		return true
	}
	return false
}

// TemplateSource lists the active templates. Implemented by the external
// template store.
type TemplateSource interface {
	ListActiveTemplates(ctx context.Context) ([]Template, error)
}

// StaticTemplates is a TemplateSource over a fixed slice. Suitable for
// configuration-file driven deployments and tests.
type StaticTemplates []Template

func (s StaticTemplates) ListActiveTemplates(ctx context.Context) ([]Template, error) {
	active := make([]Template, 0, len(s))
	for _, t := range s {
		if t.Active {
			active = append(active, t)
		}
	}
	return active, nil
}

// Resolver selects the best-matching template for a trigger and channel.
type Resolver struct {
	source TemplateSource
	logger *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger for the Resolver.
func WithResolverLogger(log *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if log != nil {
			r.logger = log
		}
	}
}

// NewResolver creates a template resolver backed by the given source.
func NewResolver(source TemplateSource, opts ...ResolverOption) (*Resolver, error) {
	if source == nil {
		return nil, ErrSourceNil
	}

	r := &Resolver{source: source, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve picks the template for the given trigger slug on the given
// channel: exact type match first, then the template flagged default, then
// the first active template for the channel.
func (r *Resolver) Resolve(ctx context.Context, triggerSlug string, ch channel.Channel) (*Template, error) {
	templates, err := r.source.ListActiveTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	var fallbackDefault *Template
	var fallbackFirst *Template
	for i := range templates {
		t := &templates[i]
		if ch != "" && t.Channel != ch {
			continue
		}
		if t.Type == triggerSlug {
			return t, nil
		}
		if t.Default && fallbackDefault == nil {
			fallbackDefault = t
		}
		if fallbackFirst == nil {
			fallbackFirst = t
		}
	}

	if fallbackDefault != nil {
		return fallbackDefault, nil
	}
	if fallbackFirst != nil {
		return fallbackFirst, nil
	}
	return nil, ErrNoTemplate
}

// ResolveBySlug returns the active template with the given slug. Used by the
// direct send path where the caller names the template explicitly.
func (r *Resolver) ResolveBySlug(ctx context.Context, slug string) (*Template, error) {
	templates, err := r.source.ListActiveTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	for i := range templates {
		if templates[i].Slug == slug {
			return &templates[i], nil
		}
	}
	return nil, ErrNoTemplate
}
