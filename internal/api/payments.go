package api

import (
	"io"
	"net/http"

	"pos-service/internal/gateway"
	"pos-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxWebhookBody bounds what a webhook may post
const maxWebhookBody = 1 << 20

func (h *Handler) createPayment(c *gin.Context) {
	var req service.CreatePaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.Payments.CreatePayment(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) getPayment(c *gin.Context) {
	payment, err := h.Payments.GetPayment(c.Request.Context(), c.Param("ref"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// paymentWebhook receives gateway status callbacks
func (h *Handler) paymentWebhook(c *gin.Context) {
	if !gateway.VerifyCallbackToken(h.WebhookToken, c.GetHeader(gateway.CallbackTokenHeader)) {
		h.logger.Warn("Rejected payment webhook with bad token", zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid callback token"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	cb, err := gateway.ParseCallback(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.Payments.HandleCallback(c.Request.Context(), cb); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
