package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/iris/pkg/context"
)

// HeaderCaller names the calling system, recorded on request logs
const HeaderCaller = "X-Caller"

// maxRequestIDLength bounds client supplied request ids; longer ones are replaced
const maxRequestIDLength = 128

// Context attaches the request metadata to the request context and echoes the request
// id back in the response.
func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" || len(id) > maxRequestIDLength {
				id = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)

			ctx := context.WithRequest(req.Context(), context.Request{
				ID:       id,
				Method:   req.Method,
				Route:    req.URL.Path,
				RemoteIP: c.RealIP(),
				Caller:   req.Header.Get(HeaderCaller),
			})
			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
