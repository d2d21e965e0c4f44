package middleware

import (
	"context"
	"strconv"
	"time"

	awspkg "github.com/abdulllahhh/Comfy/pkg/aws"

	"github.com/gin-gonic/gin"
)

const metricsSendTimeout = 5 * time.Second

// MetricsMiddleware reports one batch per request to CloudWatch: count,
// latency and, for failures, the error class. Disabled clients pass through.
func MetricsMiddleware(cw *awspkg.MetricsClient, serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cw.IsEnabled() {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		data := requestMetrics(status, time.Since(start))

		// FullPath keeps :userId out of the dimension set
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		dims := map[string]string{
			"Service": serviceName,
			"Method":  c.Request.Method,
			"Path":    route,
			"Status":  statusCodeToRange(status),
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), metricsSendTimeout)
			defer cancel()
			_ = cw.Put(ctx, dims, data...)
		}()
	}
}

func requestMetrics(status int, elapsed time.Duration) []awspkg.Datum {
	data := []awspkg.Datum{
		awspkg.Count(awspkg.MetricHTTPRequests),
		awspkg.Millis(awspkg.MetricHTTPLatency, elapsed),
	}
	switch {
	case status >= 500:
		data = append(data, awspkg.Count(awspkg.MetricHTTPErrors), awspkg.Count(awspkg.MetricHTTP5xx))
	case status >= 400:
		data = append(data, awspkg.Count(awspkg.MetricHTTPErrors), awspkg.Count(awspkg.MetricHTTP4xx))
	}
	return data
}

func statusCodeToRange(status int) string {
	if status < 200 || status >= 600 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
