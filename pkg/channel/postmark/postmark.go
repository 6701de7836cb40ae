package postmark

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/mrz1836/postmark"

	"github.com/Dwaapar/findawise-phase-127-reborn-sub001/pkg/channel"
)

// Config holds the Postmark sender configuration.
type Config struct {
	ServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	AccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail  string `env:"SENDER_EMAIL,required"`
	ReplyToEmail string `env:"REPLY_TO_EMAIL"`
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Sender is the Postmark-backed email channel adapter.
type Sender struct {
	client *postmark.Client
	config Config
}

// New creates a Postmark email sender.
// Both tokens are required for runtime operation - this enforces explicit
// configuration rather than silent failures in production.
func New(cfg Config) (*Sender, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: ServerToken is required", ErrInvalidConfig)
	}
	if cfg.AccountToken == "" {
		return nil, fmt.Errorf("%w: AccountToken is required", ErrInvalidConfig)
	}
	if cfg.SenderEmail == "" {
		return nil, fmt.Errorf("%w: SenderEmail is required", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}
	if cfg.ReplyToEmail != "" && !emailRegex.MatchString(cfg.ReplyToEmail) {
		return nil, fmt.Errorf("%w: ReplyToEmail must be a valid email address", ErrInvalidConfig)
	}

	return &Sender{
		client: postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		config: cfg,
	}, nil
}

// MustNew creates a Postmark sender that panics on invalid config, failing
// fast during initialization rather than letting a broken adapter start.
func MustNew(cfg Config) *Sender {
	s, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Sender) Channel() channel.Channel { return channel.Email }

// Send dispatches the message through Postmark's transactional API and
// normalizes the response. Provider rejections are reported through
// Result.Success and ErrorMessage; the error return carries transport
// failures only.
func (s *Sender) Send(ctx context.Context, msg channel.Message) (channel.Result, error) {
	if msg.To == "" || !emailRegex.MatchString(msg.To) {
		return channel.Result{
			Provider:     providerName,
			ErrorMessage: "invalid recipient email address",
		}, fmt.Errorf("%w: %q", ErrInvalidRecipient, msg.To)
	}

	start := time.Now()
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:       s.config.SenderEmail,
		ReplyTo:    s.config.ReplyToEmail,
		To:         msg.To,
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		TextBody:   msg.Body,
		HTMLBody:   msg.HTML,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	elapsed := time.Since(start)

	if err != nil {
		return channel.Result{
			Provider:     providerName,
			DeliveryTime: elapsed,
			ErrorMessage: err.Error(),
		}, fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return channel.Result{
			Provider:     providerName,
			DeliveryTime: elapsed,
			ErrorMessage: fmt.Sprintf("postmark error %d: %s", resp.ErrorCode, resp.Message),
		}, nil
	}

	return channel.Result{
		Success:      true,
		MessageID:    resp.MessageID,
		Provider:     providerName,
		DeliveryTime: elapsed,
	}, nil
}

const providerName = "postmark"
