package middleware

import (
	"github.com/edirooss/slowdog/internal/infrastructure/stackcapture"
	"github.com/edirooss/slowdog/internal/watchdog"
	"github.com/gin-gonic/gin"
)

// Watchdog arms w for every request that reaches it and disarms it when the
// handler chain returns, whether normally, with errors, or by panicking.
//
// Handlers can add values to the report's local-variable section with
// stackcapture.Publish(c.Request.Context(), name, value).
//
// Register it after RequestID so reports carry the request id, and after
// gin.Recovery so a panic still unwinds through the deferred disarm.
func Watchdog(w *watchdog.Watchdog) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !w.Enabled() {
			c.Next()
			return
		}

		req := watchdog.RequestFromHTTP(c.Request)
		req.Route = c.FullPath()
		req.RequestID = GetRequestID(c)
		req.ClientIP = c.ClientIP()

		locals := stackcapture.NewLocals()
		// Shown beneath the route handler's frame.
		if handler := c.HandlerName(); handler != "" {
			locals.SetFor(handler, "route", req.Route)
			locals.SetFor(handler, "request_id", req.RequestID)
		}
		c.Request = c.Request.WithContext(stackcapture.WithLocals(c.Request.Context(), locals))

		h := w.OnRequestStart(req, locals)
		defer w.OnRequestEnd(h)

		c.Next()
	}
}
