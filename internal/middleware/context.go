package middleware

import (
	"github.com/Ramsey-B/banyan/internal/context"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	// HeaderUserID is the header key for the authenticated user ID
	HeaderUserID = "X-User-ID"
	// HeaderFamilyCode is the header key for the caller's family code
	HeaderFamilyCode = "X-Family-Code"
)

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			// get request id from header
			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			// get user id from header
			userID := req.Header.Get(HeaderUserID)

			// get family code from header
			familyCode := req.Header.Get(HeaderFamilyCode)

			ctx := req.Context()
			ctx = context.SetRequestID(ctx, requestID)
			ctx = context.SetMethod(ctx, req.Method)
			ctx = context.SetRoute(ctx, req.URL.Path)
			ctx = context.SetRemoteIP(ctx, c.RealIP())
			ctx = context.SetUserID(ctx, userID)
			ctx = context.SetFamilyCode(ctx, familyCode)

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
