package httpx

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"grocery-delivery/internal/common/logger"
	"grocery-delivery/internal/domain"
	"grocery-delivery/internal/metrics"
)

// Problem is the simplified RFC 7807 body every endpoint returns on failure.
func Problem(code int, typ, detail string) gin.H {
	return gin.H{
		"type":   typ,
		"title":  http.StatusText(code),
		"status": code,
		"detail": detail,
	}
}

func WriteProblem(c *gin.Context, code int, typ, detail string) {
	c.AbortWithStatusJSON(code, Problem(code, typ, detail))
}

// WriteError maps domain errors onto HTTP statuses. Anything unrecognised is a 500
// and its message is not echoed back.
func WriteError(c *gin.Context, err error) {
	var (
		verr domain.ValidationError
		nf   domain.NotFoundError
		aerr domain.AuthenticationError
		ferr domain.ForbiddenError
		terr *domain.InvalidTransitionError
	)
	switch {
	case errors.As(err, &verr):
		WriteProblem(c, http.StatusBadRequest, "validation_error", err.Error())
	case errors.As(err, &nf):
		WriteProblem(c, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &aerr):
		WriteProblem(c, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.As(err, &ferr):
		WriteProblem(c, http.StatusForbidden, "forbidden", err.Error())
	case errors.As(err, &terr):
		WriteProblem(c, http.StatusConflict, "invalid_transition", err.Error())
	default:
		_ = c.Error(err)
		WriteProblem(c, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// Metrics records request duration by matched route.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		t := metrics.NewTimer()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		t.ObserveDurationVec(metrics.APIRequestDuration, c.Request.Method, route, strconv.Itoa(c.Writer.Status()))
	}
}

// RequestLogger logs every request at debug and handler errors attached with c.Error.
func RequestLogger(lg *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		t := metrics.NewTimer()
		c.Next()
		fields := map[string]any{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": t.Duration().Milliseconds(),
		}
		if len(c.Errors) > 0 {
			lg.Error("http_request_failed", c.Errors.Last().Err, fields)
			return
		}
		lg.Debug("http_request", fields)
	}
}
