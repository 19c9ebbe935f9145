package strategy

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/clients/normalizer"
	ctxmiddleware "github.com/Ramsey-B/fern/internal/context"
	"github.com/Ramsey-B/fern/internal/repositories/strategy"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/session"
)

var validate = validator.New()

// Register registers strategy routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.POST("", Create)
	g.GET("/:id", Get)
	g.PUT("/:id", Update)
	g.DELETE("/:id", Delete)
	g.POST("/:id/save", Save)
}

// List returns all strategies for the site
func List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "strategy_handler.List")
	defer span.End()

	siteID := ctxmiddleware.GetSiteID(ctx)
	if siteID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "site_id is required")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	ctx, repo, err := ectoinject.GetContext[*strategy.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	items, totalCount, err := repo.List(ctx, siteID, page, pageSize)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to list strategies")
	}

	return c.JSON(http.StatusOK, models.StrategyListResponse{
		Items:      items,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	})
}

// Create creates a new strategy
func Create(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "strategy_handler.Create")
	defer span.End()

	siteID := ctxmiddleware.GetSiteID(ctx)
	if siteID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "site_id is required")
	}

	var req models.CreateStrategyRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := ectoinject.GetContext[*strategy.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.Create(ctx, siteID, req)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create strategy")
	}

	return c.JSON(http.StatusCreated, models.StrategyResponse{Strategy: *result})
}

// Get returns a single strategy by ID
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "strategy_handler.Get")
	defer span.End()

	siteID := ctxmiddleware.GetSiteID(ctx)
	if siteID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "site_id is required")
	}
	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*strategy.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.GetByID(ctx, siteID, id)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get strategy")
	}
	if result == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "strategy not found")
	}

	return c.JSON(http.StatusOK, models.StrategyResponse{Strategy: *result})
}

// Update applies a partial update to a strategy
func Update(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "strategy_handler.Update")
	defer span.End()

	siteID := ctxmiddleware.GetSiteID(ctx)
	if siteID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "site_id is required")
	}

	id := c.Param("id")

	var req models.UpdateStrategyRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx, repo, err := ectoinject.GetContext[*strategy.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.Update(ctx, siteID, id, req)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update strategy")
	}
	if result == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "strategy not found")
	}

	return c.JSON(http.StatusOK, models.StrategyResponse{Strategy: *result})
}

// Delete soft deletes a strategy
func Delete(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "strategy_handler.Delete")
	defer span.End()

	siteID := ctxmiddleware.GetSiteID(ctx)
	if siteID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "site_id is required")
	}

	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*strategy.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	existing, err := repo.GetByID(ctx, siteID, id)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get strategy")
	}
	if existing == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "strategy not found")
	}

	if err := repo.Delete(ctx, siteID, id); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete strategy")
	}

	return c.NoContent(http.StatusNoContent)
}

// Save serializes the conversation's working strategy, round-trips it through
// the remote normalizer, persists the canonical plan, and installs the
// canonical form back into the session. Mismatches and outstanding step
// validation errors block the save.
func Save(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "strategy_handler.Save")
	defer span.End()

	siteID := ctxmiddleware.GetSiteID(ctx)
	if siteID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "site_id is required")
	}
	conversationID := ctxmiddleware.GetConversationID(ctx)
	if conversationID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "conversation_id is required")
	}

	id := c.Param("id")

	ctx, sessions, err := ectoinject.GetContext[*session.Manager](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get session manager")
	}
	ctx, normClient, err := ectoinject.GetContext[normalizer.Client](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get normalizer client")
	}
	ctx, repo, err := ectoinject.GetContext[*strategy.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	var saved *models.Strategy
	err = sessions.With(conversationID, func(s *session.Session) error {
		candidate, err := s.BuildPlan()
		if err != nil {
			return httperror.NewHTTPError(http.StatusConflict, err.Error())
		}

		resp, err := normClient.Normalize(ctx, models.NormalizeRequest{SiteID: siteID, Plan: candidate})
		if err != nil {
			var rejected *normalizer.ErrRejected
			if errors.As(err, &rejected) {
				return httperror.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
			}
			return httperror.NewHTTPError(http.StatusBadGateway, "failed to normalize plan")
		}

		isSaved := true
		result, err := repo.Update(ctx, siteID, id, models.UpdateStrategyRequest{
			Plan:    &resp.Plan,
			IsSaved: &isSaved,
		})
		if err != nil {
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to persist strategy")
		}
		if result == nil {
			return httperror.NewHTTPError(http.StatusNotFound, "strategy not found")
		}

		s.InstallPlan(resp.Plan)
		saved = result
		return nil
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.StrategyResponse{Strategy: *saved})
}
