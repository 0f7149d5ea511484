package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RequestObserver はリクエスト完了時に計測値を受け取る。
// *metrics.Metrics がこれを満たす。
type RequestObserver interface {
	ObserveRequest(method, route string, status int, d time.Duration)
}

// unmatchedRoute はルーティングに一致しなかったリクエストのラベル。
const unmatchedRoute = "unmatched"

// AccessLog はリクエストごとに1行のアクセスログを出力するGinミドルウェアを返す。
// observerがnilでなければ同じ値をメトリクスとしても記録する。
func AccessLog(logger zerolog.Logger, observer RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}

		if observer != nil {
			observer.ObserveRequest(c.Request.Method, route, status, latency)
		}

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		default:
			event = logger.Info()
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("remote_addr", c.ClientIP()).
			Str("request_id", GetRequestID(c)).
			Msg("request")
	}
}
