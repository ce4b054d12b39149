package sensors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lodeflow/sentinel/pkg/deferral"
	"github.com/lodeflow/sentinel/pkg/events"
	"github.com/lodeflow/sentinel/pkg/protocol"
	"github.com/lodeflow/sentinel/pkg/triggers/httpcheck"
)

// HTTPConfig configures an HTTPSensor.
type HTTPConfig struct {
	URL          string `validate:"required,url"`
	Method       string
	Headers      map[string]string
	Body         string
	PokeInterval time.Duration `validate:"gt=0"`
	Timeout      time.Duration `validate:"gt=0"`
	SoftFail     bool
}

// HTTPSensor succeeds once the endpoint returns anything other than 404.
type HTTPSensor struct {
	id     string
	cfg    HTTPConfig
	client *http.Client
	logger *slog.Logger
}

func NewHTTPSensor(id string, cfg HTTPConfig, logger *slog.Logger) (*HTTPSensor, error) {
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}

	cfg.Method = strings.ToUpper(cfg.Method)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid http sensor config: %w", err)
	}

	return &HTTPSensor{
		id:     id,
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger.With("module", "http_sensor", "sensor_id", id),
	}, nil
}

func (s *HTTPSensor) ID() string {
	return s.id
}

func (s *HTTPSensor) Execute(ctx context.Context) (*protocol.Deferral, error) {
	status, err := s.poke(ctx)
	if err != nil {
		if s.cfg.SoftFail {
			return nil, deferral.Skip("%s", err.Error())
		}

		return nil, err
	}

	if status != http.StatusNotFound {
		s.logger.Info("Endpoint available, completing without deferral", "status", status)

		return nil, nil
	}

	trigger, err := httpcheck.New(httpcheck.Trigger{
		URL:          s.cfg.URL,
		Method:       s.cfg.Method,
		Headers:      s.cfg.Headers,
		Body:         s.cfg.Body,
		PokeInterval: s.cfg.PokeInterval,
	}, s.logger)
	if err != nil {
		return nil, err
	}

	return &protocol.Deferral{Trigger: trigger, Timeout: s.cfg.Timeout}, nil
}

func (s *HTTPSensor) ExecuteComplete(_ context.Context, event events.TriggerEvent) (*protocol.Deferral, error) {
	switch event.Status {
	case events.StatusSuccess:
		return nil, nil
	case events.StatusError:
		// Error events here come from the host mapping a trigger coroutine
		// failure; they are always hard.
		return nil, errors.New(event.Message)
	}

	return nil, fmt.Errorf("unexpected event status %q", event.Status)
}

// poke issues one request; any failure other than a clean status read is an
// error the soft-fail policy applies to.
func (s *HTTPSensor) poke(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, s.cfg.Method, s.cfg.URL, strings.NewReader(s.cfg.Body))
	if err != nil {
		return 0, fmt.Errorf("build request for %s: %w", s.cfg.URL, err)
	}

	for key, value := range s.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request %s: %w", s.cfg.URL, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusNotFound {
		return 0, fmt.Errorf("endpoint %s returned status %d", s.cfg.URL, resp.StatusCode)
	}

	return resp.StatusCode, nil
}
