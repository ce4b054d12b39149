// Package httpcheck implements the HTTP availability trigger: it polls an
// endpoint until it returns anything other than 404.
package httpcheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lodeflow/sentinel/pkg/events"
	"github.com/lodeflow/sentinel/pkg/protocol"
)

// TypeName is the registry tag this trigger serializes under.
const TypeName = "http_availability"

const defaultRequestTimeout = 30 * time.Second

// Trigger issues one request per tick. A 404 sleeps and retries; a success
// status delivers a success event; any other failure is returned from Run
// unwrapped. The host maps that coroutine failure to the same outcome as an
// error event, so unlike the storage triggers this one never builds error
// events itself.
type Trigger struct {
	URL          string
	Method       string
	Headers      map[string]string
	Body         string
	PokeInterval time.Duration

	client *http.Client
	logger *slog.Logger
}

func New(cfg Trigger, logger *slog.Logger) (*Trigger, error) {
	trigger := cfg
	trigger.client = &http.Client{Timeout: defaultRequestTimeout}
	trigger.logger = logger.With("module", "httpcheck_trigger", "url", cfg.URL)

	if trigger.Method == "" {
		trigger.Method = http.MethodGet
	}

	trigger.Method = strings.ToUpper(trigger.Method)

	if err := trigger.Validate(); err != nil {
		return nil, err
	}

	return &trigger, nil
}

func (t *Trigger) Validate() error {
	if t.URL == "" {
		return errors.New("url is required")
	}

	if _, err := url.ParseRequestURI(t.URL); err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if t.Method != http.MethodGet && t.Method != http.MethodPost {
		return fmt.Errorf("unsupported method %q", t.Method)
	}

	if t.PokeInterval <= 0 {
		return errors.New("poke interval must be positive")
	}

	return nil
}

func (t *Trigger) Serialize() (string, map[string]any) {
	return TypeName, map[string]any{
		"url":           t.URL,
		"method":        t.Method,
		"headers":       t.Headers,
		"body":          t.Body,
		"poke_interval": t.PokeInterval.Seconds(),
	}
}

func (t *Trigger) Run(ctx context.Context, emit protocol.EmitFunc) error {
	for {
		status, err := t.check(ctx)
		if err != nil {
			return err
		}

		switch {
		case status == http.StatusNotFound:
			t.logger.Debug("Endpoint not found yet, retrying", "status", status)
		case status >= http.StatusBadRequest:
			return fmt.Errorf("endpoint %s returned status %d", t.URL, status)
		default:
			return emit(ctx, events.Success(nil))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.PokeInterval):
		}
	}
}

func (t *Trigger) check(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, t.Method, t.URL, strings.NewReader(t.Body))
	if err != nil {
		return 0, fmt.Errorf("build request for %s: %w", t.URL, err)
	}

	for key, value := range t.Headers {
		req.Header.Set(key, value)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request %s: %w", t.URL, err)
	}

	defer resp.Body.Close()

	return resp.StatusCode, nil
}
