// Package validation proxies step parameter validation to the remote
// validation service. Verdicts annotate steps; they never block editing.
package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/clients/httpclient"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Client validates step parameters.
type Client interface {
	ValidateStep(ctx context.Context, req models.ValidateStepRequest) (*models.ValidateStepResponse, error)
}

type client struct {
	http    *httpclient.Client
	baseURL string
	logger  ectologger.Logger
}

// New creates a validation client.
func New(baseURL string, timeout time.Duration, logger ectologger.Logger) Client {
	cfg := httpclient.DefaultConfig()
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	return &client{
		http:    httpclient.NewClient(cfg, logger),
		baseURL: baseURL,
		logger:  logger,
	}
}

func (c *client) ValidateStep(ctx context.Context, req models.ValidateStepRequest) (*models.ValidateStepResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "validation.Client.ValidateStep")
	defer span.End()

	var resp models.ValidateStepResponse
	if err := c.http.PostJSON(ctx, c.baseURL+"/v1/steps/validate", req, &resp); err != nil {
		c.logger.WithContext(ctx).WithError(err).Error("Failed to validate step")
		return nil, fmt.Errorf("failed to validate step: %w", err)
	}

	return &resp, nil
}
