// Package middleware holds the echo middleware shared by all routes.
package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/context"
)

const (
	// HeaderSiteID is the header key for site ID
	HeaderSiteID = "X-Site-ID"
	// HeaderConversationID is the header key for conversation ID
	HeaderConversationID = "X-Conversation-ID"
)

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			siteID := req.Header.Get(HeaderSiteID)
			conversationID := req.Header.Get(HeaderConversationID)

			ctx := req.Context()
			ctx = context.SetRequestID(ctx, requestID)
			ctx = context.SetMethod(ctx, req.Method)
			ctx = context.SetRoute(ctx, req.URL.Path)
			ctx = context.SetRemoteIP(ctx, c.RealIP())
			ctx = context.SetSiteID(ctx, siteID)
			ctx = context.SetConversationID(ctx, conversationID)

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
