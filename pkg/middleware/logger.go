package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/iris/pkg/context"
)

// quietPrefixes are polled by orchestrators and scrapers; successful hits are not logged
var quietPrefixes = []string{"/api/v1/health", "/metrics"}

// Logger writes one structured line per request. Server errors log at error level,
// client errors at warn.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			req, res := c.Request(), c.Response()
			if res.Status < http.StatusBadRequest && quiet(req.URL.Path) {
				return nil
			}

			ctx := req.Context()
			fields := context.Fields(ctx)
			fields["status"] = res.Status
			fields["path"] = c.Path()
			fields["duration"] = time.Since(start).String()
			fields["bytes_out"] = res.Size
			fields["user_agent"] = req.UserAgent()

			log := logger.WithContext(ctx).WithFields(fields)
			switch {
			case res.Status >= http.StatusInternalServerError:
				log.Error("Request failed")
			case res.Status >= http.StatusBadRequest:
				log.Warn("Request rejected")
			default:
				log.Info("Request")
			}
			return nil
		}
	}
}

func quiet(path string) bool {
	for _, p := range quietPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
