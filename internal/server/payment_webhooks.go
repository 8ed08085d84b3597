package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/webloom/entitled/internal/payment/domain"
)

func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))

	if s.webhookLimiter.Enabled() {
		limit, err := s.webhookLimiter.AllowProvider(c.Request.Context(), provider)
		if err != nil {
			s.log.Warn("webhook rate limit check failed")
		} else if !limit.Allowed {
			if s.obsMetrics != nil {
				s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), "payment_webhook")
			}
			retryAfter := int(limit.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": gin.H{
				"type":    "rate_limited",
				"message": "too many webhook deliveries",
			}})
			return
		}
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.webhookSvc.Handle(c.Request.Context(), provider, payload, c.Request.Header)
	if err != nil {
		// unrelated event types are acknowledged so the provider stops
		// redelivering them
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
