package deployd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"
)

// ErrQueueFull is the transient rejection a Submitter returns when the
// execution channel cannot accept work right now. It is the only error the
// client retries; everything else is treated as permanent.
var ErrQueueFull = errors.New("deployd: submission queue full")

// ErrNotConfirmed is returned when a submission never surfaced a result
// before the polling deadline.
var ErrNotConfirmed = errors.New("deployd: submission not confirmed before deadline")

// Submitter is the outbound execution channel. Submit hands over a signed
// payload and returns the channel's transaction id; Result reports whether
// the id has been included yet.
type Submitter interface {
	Submit(ctx context.Context, payload []byte) (string, error)
	Result(ctx context.Context, txID string) (confirmed bool, err error)
}

// Options tune the retry and confirmation behavior.
type Options struct {
	// MaxAttempts bounds Submit retries on ErrQueueFull. Zero means 5.
	MaxAttempts int
	// BaseDelay is the first backoff step. Zero means 250ms.
	BaseDelay time.Duration
	// MaxDelay caps the backoff growth. Zero means 8s.
	MaxDelay time.Duration
	// ConfirmTimeout bounds result polling. Zero means 2 minutes.
	ConfirmTimeout time.Duration
	// PollInterval is the gap between result polls. Zero means 2s.
	PollInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 250 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 8 * time.Second
	}
	if o.ConfirmTimeout <= 0 {
		o.ConfirmTimeout = 2 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	return o
}

// Client drives retried submission and confirmation against a Submitter.
type Client struct {
	submitter Submitter
	opts      Options
	sleep     func(context.Context, time.Duration) error
	jitter    func(time.Duration) time.Duration
}

// NewClient wraps the submitter with retry and confirmation behavior.
func NewClient(submitter Submitter, opts Options) *Client {
	return &Client{
		submitter: submitter,
		opts:      opts.withDefaults(),
		sleep:     sleepCtx,
		jitter:    fullJitter,
	}
}

// Submit pushes the payload through the channel, retrying queue-full
// rejections with exponentially growing, jittered delays. The returned id is
// normalized; when the channel returns an empty id the caller's precomputed
// fallback id is used instead.
func (c *Client) Submit(ctx context.Context, payload []byte, fallbackID string) (string, error) {
	if c == nil || c.submitter == nil {
		return "", fmt.Errorf("deployd: submitter not configured")
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("deployd: empty payload")
	}
	delay := c.opts.BaseDelay
	for attempt := 1; ; attempt++ {
		txID, err := c.submitter.Submit(ctx, payload)
		if err == nil {
			if strings.TrimSpace(txID) == "" {
				txID = fallbackID
			}
			return NormalizeTxID(txID)
		}
		if !errors.Is(err, ErrQueueFull) {
			return "", err
		}
		if attempt >= c.opts.MaxAttempts {
			return "", fmt.Errorf("deployd: %d submissions rejected: %w", attempt, err)
		}
		wait := c.jitter(delay)
		slog.Warn("submission queue full, backing off",
			"attempt", attempt,
			"wait", wait,
		)
		if err := c.sleep(ctx, wait); err != nil {
			return "", err
		}
		delay *= 2
		if delay > c.opts.MaxDelay {
			delay = c.opts.MaxDelay
		}
	}
}

// AwaitConfirmation polls the channel until the id is confirmed or the
// configured deadline passes.
func (c *Client) AwaitConfirmation(ctx context.Context, txID string) error {
	if c == nil || c.submitter == nil {
		return fmt.Errorf("deployd: submitter not configured")
	}
	normalized, err := NormalizeTxID(txID)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(c.opts.ConfirmTimeout)
	for {
		confirmed, err := c.submitter.Result(ctx, normalized)
		if err != nil {
			return err
		}
		if confirmed {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrNotConfirmed, normalized)
		}
		if err := c.sleep(ctx, c.opts.PollInterval); err != nil {
			return err
		}
	}
}

// NormalizeTxID canonicalizes a transaction id to lowercase 0x-prefixed hex.
func NormalizeTxID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("deployd: empty transaction id")
	}
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0X"), "0x")
	if trimmed == "" {
		return "", fmt.Errorf("deployd: transaction id has no digits")
	}
	for _, r := range trimmed {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') && (r < 'A' || r > 'F') {
			return "", fmt.Errorf("deployd: transaction id contains non-hex character %q", r)
		}
	}
	return "0x" + strings.ToLower(trimmed), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func fullJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d))) + d/2
}
