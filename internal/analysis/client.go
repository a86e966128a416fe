// Package analysis sends documents to a hosted language model and turns the
// reply into a structured legal analysis.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"

	"github.com/ragavi-632007/visionx/internal/document"
	"github.com/ragavi-632007/visionx/internal/logging"
)

// DefaultBackoff is the wait before the second and third attempts.
var DefaultBackoff = []time.Duration{time.Second, 2 * time.Second}

type Client struct {
	cfg     Config
	factory ModelFactory
	logger  logrus.FieldLogger
	sleep   func(ctx context.Context, d time.Duration) error
	backoff []time.Duration

	mu sync.Mutex
	// analysis calls declare ResponseSchema, chat calls do not
	analysisModel llms.Model
	chatModel     llms.Model
}

type Option func(*Client)

func WithModelFactory(factory ModelFactory) Option {
	return func(c *Client) { c.factory = factory }
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithSleep replaces the backoff sleeper, used by tests to record delays.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

func WithBackoff(backoff []time.Duration) Option {
	return func(c *Client) { c.backoff = backoff }
}

func NewClient(cfg Config, opts ...Option) *Client {
	client := &Client{
		cfg:     cfg,
		factory: NewModel,
		logger:  logging.Discard(),
		sleep:   sleepContext,
		backoff: DefaultBackoff,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *Client) Provider() string { return c.cfg.ProviderName() }

func (c *Client) Model() string { return c.cfg.ModelName() }

// ImagesOnly reports whether PDFs must be rasterized before analysis.
func (c *Client) ImagesOnly() bool { return c.cfg.ImagesOnly() }

// Configured reports whether a credential is present.
func (c *Client) Configured() bool {
	return strings.TrimSpace(c.cfg.APIKey) != ""
}

// AnalyzeDocument analyzes files, all parts of one document, and returns the
// validated result. Rate-limited calls are retried with DefaultBackoff; every
// other failure is returned on the first attempt.
func (c *Client) AnalyzeDocument(ctx context.Context, files []document.File, language string) (Result, error) {
	req, err := BuildRequest(files, language)
	if err != nil {
		return Result{}, err
	}
	if c.ImagesOnly() {
		if err := req.RequireImages(); err != nil {
			return Result{}, err
		}
	}
	model, err := c.getModel(ctx, true)
	if err != nil {
		return Result{}, err
	}

	logger := c.logger.WithFields(logrus.Fields{
		"provider": c.Provider(),
		"model":    c.Model(),
		"files":    len(files),
		"language": req.Language,
	})
	logger.Debug("Sending document for analysis")

	opts := append(c.callOptions(), llms.WithJSONMode())
	content, err := c.generate(ctx, logger, model, req.Messages(c.Provider()), opts)
	if err != nil {
		return Result{}, err
	}

	result, err := ParseResult(content)
	if err != nil {
		logger.WithError(err).Warn("Analysis response failed validation")
		return Result{}, err
	}
	logger.Info("Document analyzed")
	return result, nil
}

func (c *Client) callOptions() []llms.CallOption {
	var opts []llms.CallOption
	if c.cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.cfg.MaxTokens))
	}
	if c.cfg.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(c.cfg.Temperature))
	}
	return opts
}

// getModel builds each provider model once per Client. Structured models
// declare ResponseSchema to the provider.
func (c *Client) getModel(ctx context.Context, structured bool) (llms.Model, error) {
	if !c.Configured() {
		return nil, newError(ErrServiceUnavailable, errMissingAPIKey)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	slot := &c.chatModel
	if structured {
		slot = &c.analysisModel
	}
	if *slot != nil {
		return *slot, nil
	}
	cfg := c.cfg
	cfg.Structured = structured
	model, err := c.factory(ctx, cfg)
	if err != nil {
		c.logger.WithError(err).WithField("provider", c.Provider()).Error("Failed to create LLM client")
		return nil, newError(ErrServiceUnavailable, err)
	}
	*slot = model
	return model, nil
}

func (c *Client) generate(ctx context.Context, logger logrus.FieldLogger, model llms.Model, messages []llms.MessageContent, opts []llms.CallOption) (string, error) {
	attempts := len(c.backoff) + 1
	for attempt := 1; ; attempt++ {
		resp, err := model.GenerateContent(ctx, messages, opts...)
		if err == nil {
			if resp == nil || len(resp.Choices) == 0 {
				return "", newError(ErrAnalysisFailed, errors.New("model returned no choices"))
			}
			return resp.Choices[0].Content, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		classified := classify(err)
		if !isRateLimited(err) || attempt >= attempts {
			logger.WithError(err).WithField("attempt", attempt).Warn("Model request failed")
			return "", classified
		}

		wait := c.backoff[attempt-1]
		logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"wait":    wait.String(),
		}).Info("Model rate limited, retrying")
		if err := c.sleep(ctx, wait); err != nil {
			return "", err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// String implements fmt.Stringer without exposing the credential.
func (c *Client) String() string {
	return fmt.Sprintf("analysis.Client{provider=%s model=%s}", c.Provider(), c.Model())
}
