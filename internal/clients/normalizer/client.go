// Package normalizer talks to the remote plan normalizer. Canonicalization is
// authoritative there; every plan is round-tripped through it before being
// persisted.
package normalizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/clients/httpclient"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Client normalizes candidate plans.
type Client interface {
	Normalize(ctx context.Context, req models.NormalizeRequest) (*models.NormalizeResponse, error)
}

type client struct {
	http    *httpclient.Client
	baseURL string
	logger  ectologger.Logger
}

// ErrRejected is returned when the normalizer refuses the plan outright.
type ErrRejected struct {
	StatusCode int
	Detail     string
}

func (e *ErrRejected) Error() string {
	return fmt.Sprintf("normalizer rejected plan (status %d): %s", e.StatusCode, e.Detail)
}

// New creates a normalizer client.
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

func (c *client) Normalize(ctx context.Context, req models.NormalizeRequest) (*models.NormalizeResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "normalizer.Client.Normalize")
	defer span.End()

	var resp models.NormalizeResponse
	err := c.http.PostJSON(ctx, c.baseURL+"/v1/plans/normalize", req, &resp)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnprocessableEntity {
			return nil, &ErrRejected{StatusCode: statusErr.StatusCode, Detail: string(statusErr.Body)}
		}
		c.logger.WithContext(ctx).WithError(err).Error("Failed to normalize plan")
		return nil, fmt.Errorf("failed to normalize plan: %w", err)
	}

	return &resp, nil
}
