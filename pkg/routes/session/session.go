// Package session exposes the editing surface for a conversation's working
// strategy: gestures, positions, undo, and the renderable view.
package session

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/clients/validation"
	ctxmiddleware "github.com/Ramsey-B/fern/internal/context"
	strategyrepo "github.com/Ramsey-B/fern/internal/repositories/strategy"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/history"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/session"
)

var validate = validator.New()

// Register registers session routes
func Register(g *echo.Group) {
	g.GET("/view", View)
	g.GET("/messages", Messages)
	g.PUT("/messages", RefreshMessages)
	g.POST("/connect", Connect)
	g.POST("/disconnect", Disconnect)
	g.POST("/steps", AddStep)
	g.PUT("/steps/:id", UpdateStep)
	g.DELETE("/steps/:id", RemoveStep)
	g.POST("/steps/:id/validate", ValidateStep)
	g.POST("/positions", MoveNodes)
	g.POST("/positions/undo", UndoPositions)
	g.POST("/positions/redo", RedoPositions)
	g.POST("/undo/:turn_id", UndoModelChanges)
	g.POST("/switch", Switch)
	g.POST("/refresh", Refresh)
}

// ViewResponse is the renderable projection of the session.
type ViewResponse struct {
	Strategy   models.Strategy       `json:"strategy"`
	Nodes      []session.NodeView    `json:"nodes"`
	Edges      []session.EdgeView    `json:"edges"`
	Mismatches []graph.MismatchGroup `json:"mismatches"`
	Epoch      int                   `json:"epoch"`
}

// ConnectRequest is a connect or disconnect gesture.
type ConnectRequest struct {
	SourceID string `json:"source_id" validate:"required"`
	TargetID string `json:"target_id" validate:"required"`
	Slot     string `json:"slot,omitempty"`
}

// MoveNodesRequest commits a drag-stop.
type MoveNodesRequest struct {
	Moves map[string]history.Position `json:"moves" validate:"required"`
}

// SwitchRequest switches the session to another strategy.
type SwitchRequest struct {
	StrategyID string `json:"strategy_id" validate:"required"`
}

// RefreshMessagesRequest installs a re-fetched transcript.
type RefreshMessagesRequest struct {
	Epoch    int              `json:"epoch"`
	Messages []models.Message `json:"messages"`
}

func withSession(c echo.Context, fn func(s *session.Session) error) error {
	ctx := c.Request().Context()

	conversationID := ctxmiddleware.GetConversationID(ctx)
	if conversationID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "conversation_id is required")
	}

	_, sessions, err := ectoinject.GetContext[*session.Manager](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get session manager")
	}

	return sessions.With(conversationID, fn)
}

func viewOf(s *session.Session) ViewResponse {
	return ViewResponse{
		Strategy:   s.Strategy(),
		Nodes:      s.NodeViews(),
		Edges:      s.EdgeViews(),
		Mismatches: s.Mismatches(),
		Epoch:      s.Epoch(),
	}
}

// View returns the current renderable state of the session
func View(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "session_handler.View")
	defer span.End()
	_ = ctx

	return withSession(c, func(s *session.Session) error {
		return c.JSON(http.StatusOK, viewOf(s))
	})
}

// Messages returns the merged transcript
func Messages(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "session_handler.Messages")
	defer span.End()
	_ = ctx

	return withSession(c, func(s *session.Session) error {
		return c.JSON(http.StatusOK, map[string]any{"messages": s.Messages()})
	})
}

// RefreshMessages merges a re-fetched transcript into the session
func RefreshMessages(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "session_handler.RefreshMessages")
	defer span.End()
	_ = ctx

	var req RefreshMessagesRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	return withSession(c, func(s *session.Session) error {
		applied := s.ApplyFetchedMessages(req.Epoch, req.Messages)
		return c.JSON(http.StatusOK, map[string]any{
			"applied":  applied,
			"messages": s.Messages(),
		})
	})
}

// Connect applies a connect gesture
func Connect(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "session_handler.Connect")
	defer span.End()
	_ = ctx

	var req ConnectRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return withSession(c, func(s *session.Session) error {
		edge := graph.Edge{SourceID: req.SourceID, TargetID: req.TargetID, Slot: graph.Slot(req.Slot)}
		if err := s.Connect(edge); err != nil {
			if errors.Is(err, session.ErrInvalidConnection) {
				return httperror.NewHTTPError(http.StatusConflict, err.Error())
			}
			return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return c.JSON(http.StatusOK, viewOf(s))
	})
}

// Disconnect removes an edge
func Disconnect(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "session_handler.Disconnect")
	defer span.End()
	_ = ctx

	var req ConnectRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return withSession(c, func(s *session.Session) error {
		edge := graph.Edge{SourceID: req.SourceID, TargetID: req.TargetID, Slot: graph.Slot(req.Slot)}
		if err := s.Disconnect(edge); err != nil {
			if errors.Is(err, session.ErrUnknownStep) {
				return httperror.NewHTTPError(http.StatusNotFound, err.Error())
			}
			return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return c.JSON(http.StatusOK, viewOf(s))
	})
}

// AddStep appends a step to the working strategy
func AddStep(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "session_handler.AddStep")
	defer span.End()
	_ = ctx

	var step models.Step
	if err := c.Bind(&step); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	return withSession(c, func(s *session.Session) error {
		added := s.AddStep(step)
		return c.JSON(http.StatusCreated, map[string]any{
			"step": added,
			"view": viewOf(s),
		})
	})
}

// UpdateStep replaces a step's payload
func UpdateStep(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "session_handler.UpdateStep")
	defer span.End()
	_ = ctx

	var step models.Step
	if err := c.Bind(&step); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	step.ID = c.Param("id")

	return withSession(c, func(s *session.Session) error {
		if err := s.UpdateStep(step); err != nil {
			return httperror.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return c.JSON(http.StatusOK, viewOf(s))
	})
}

// RemoveStep deletes a step
func RemoveStep(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "session_handler.RemoveStep")
	defer span.End()
	_ = ctx

	id := c.Param("id")

	return withSession(c, func(s *session.Session) error {
		if err := s.RemoveStep(id); err != nil {
			return httperror.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return c.JSON(http.StatusOK, viewOf(s))
	})
}

// ValidateStep proxies a step's parameters to the remote validation service
// and attaches the verdict to the step. A failed validation annotates the
// step; it never rejects the edit.
func ValidateStep(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "session_handler.ValidateStep")
	defer span.End()

	siteID := ctxmiddleware.GetSiteID(ctx)
	if siteID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "site_id is required")
	}

	id := c.Param("id")

	ctx, client, err := ectoinject.GetContext[validation.Client](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get validation client")
	}

	return withSession(c, func(s *session.Session) error {
		strat := s.Strategy()
		step := strat.StepByID(id)
		if step == nil {
			return httperror.NewHTTPError(http.StatusNotFound, "step not found")
		}

		resp, err := client.ValidateStep(ctx, models.ValidateStepRequest{
			SiteID:     siteID,
			RecordType: step.RecordType,
			SearchName: step.SearchName,
			Parameters: step.Parameters,
		})
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadGateway, "failed to validate step")
		}

		var verr *models.StepValidationError
		if !resp.IsValid {
			verr = &resp.Errors
		}
		if err := s.SetStepValidation(id, verr); err != nil {
			return httperror.NewHTTPError(http.StatusNotFound, err.Error())
		}

		return c.JSON(http.StatusOK, resp)
	})
}

// MoveNodes commits a drag-stop
func MoveNodes(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "session_handler.MoveNodes")
	defer span.End()
	_ = ctx

	var req MoveNodesRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return withSession(c, func(s *session.Session) error {
		s.MoveNodes(req.Moves)
		return c.JSON(http.StatusOK, map[string]any{"positions": s.Positions()})
	})
}

// UndoPositions reverts the last committed drag
func UndoPositions(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "session_handler.UndoPositions")
	defer span.End()
	_ = ctx

	return withSession(c, func(s *session.Session) error {
		undone := s.UndoPositions()
		return c.JSON(http.StatusOK, map[string]any{
			"undone":    undone,
			"positions": s.Positions(),
		})
	})
}

// RedoPositions re-applies an undone drag
func RedoPositions(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "session_handler.RedoPositions")
	defer span.End()
	_ = ctx

	return withSession(c, func(s *session.Session) error {
		redone := s.RedoPositions()
		return c.JSON(http.StatusOK, map[string]any{
			"redone":    redone,
			"positions": s.Positions(),
		})
	})
}

// UndoModelChanges restores the strategy as it was before the given turn
func UndoModelChanges(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "session_handler.UndoModelChanges")
	defer span.End()
	_ = ctx

	turnID := c.Param("turn_id")

	return withSession(c, func(s *session.Session) error {
		if !s.UndoModelChanges(turnID) {
			return httperror.NewHTTPError(http.StatusNotFound, "no undoable changes for turn")
		}
		return c.JSON(http.StatusOK, viewOf(s))
	})
}

// Switch loads another strategy into the session, invalidating in-flight
// fetches for the previous one
func Switch(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "session_handler.Switch")
	defer span.End()

	siteID := ctxmiddleware.GetSiteID(ctx)
	if siteID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "site_id is required")
	}

	var req SwitchRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := ectoinject.GetContext[*strategyrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	loaded, err := repo.GetByID(ctx, siteID, req.StrategyID)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get strategy")
	}
	if loaded == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "strategy not found")
	}

	return withSession(c, func(s *session.Session) error {
		s.SwitchStrategy(*loaded)
		return c.JSON(http.StatusOK, viewOf(s))
	})
}

// Refresh re-fetches the session's strategy from storage. The result is
// dropped when a stream-driven reconciliation landed this turn or when the
// session switched strategies while the fetch was in flight.
func Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "session_handler.Refresh")
	defer span.End()

	siteID := ctxmiddleware.GetSiteID(ctx)
	if siteID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "site_id is required")
	}

	ctx, repo, err := ectoinject.GetContext[*strategyrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	var epoch int
	var strategyID string
	if err := withSession(c, func(s *session.Session) error {
		epoch = s.Epoch()
		strategyID = s.Strategy().ID
		return nil
	}); err != nil {
		return err
	}

	if strategyID == "" {
		return httperror.NewHTTPError(http.StatusConflict, "session has no strategy loaded")
	}

	fetched, err := repo.GetByID(ctx, siteID, strategyID)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get strategy")
	}
	if fetched == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "strategy not found")
	}

	return withSession(c, func(s *session.Session) error {
		applied := s.ApplyFetchedStrategy(epoch, *fetched)
		resp := viewOf(s)
		return c.JSON(http.StatusOK, map[string]any{
			"applied": applied,
			"view":    resp,
		})
	})
}
