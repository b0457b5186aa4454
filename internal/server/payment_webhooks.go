package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/redress/internal/payment/domain"
)

const maxWebhookBody = 1 << 20

var webhookAck = gin.H{"status": "ok"}

// HandlePaymentWebhook turns a signed checkout confirmation into credits.
// Providers retry on anything but 2xx, so redeliveries and ignored event types are acknowledged.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	payload, err := c.GetRawData()
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	err = s.paymentSvc.IngestWebhook(c.Request.Context(), c.Param("provider"), payload, c.Request.Header)
	switch {
	case err == nil,
		errors.Is(err, paymentdomain.ErrEventAlreadyProcessed),
		errors.Is(err, paymentdomain.ErrEventIgnored):
		c.JSON(http.StatusOK, webhookAck)
	default:
		AbortWithError(c, err)
	}
}
