package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/prescripto-api/internal/middleware"
	"github.com/harentsoaR/prescripto-api/internal/services"
)

type VerifyPaymentRequest struct {
	AppointmentID string `json:"appointmentId" form:"appointmentId" binding:"required"`
	PaymentLinkID string `json:"paymentLinkId" form:"razorpay_payment_link_id"`
}

func (h *Handler) MakePayment(c *gin.Context) {
	var req AppointmentIDRequest
	if !bind(c, &req, "Appointment not found or cancelled") {
		return
	}
	checkout, err := h.svc.Payments.Initiate(c.Request.Context(), middleware.PrincipalID(c), req.AppointmentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"url": checkout.URL, "paymentLinkId": checkout.ID})
}

func (h *Handler) VerifyPayment(c *gin.Context) {
	var req VerifyPaymentRequest
	if !bind(c, &req, "Appointment not found or cancelled") {
		return
	}
	if err := h.svc.Payments.Confirm(c.Request.Context(), middleware.PrincipalID(c), req.AppointmentID, req.PaymentLinkID); err != nil {
		h.fail(c, err)
		return
	}
	okMessage(c, "Payment successful")
}

// PaymentWebhook receives gateway events. Internal failures answer 500 so the
// gateway retries; every other outcome is acknowledged.
func (h *Handler) PaymentWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		failMessage(c, "Invalid webhook payload")
		return
	}
	err = h.svc.Payments.HandleWebhook(c.Request.Context(), body, c.GetHeader("X-Razorpay-Signature"))
	if err != nil {
		e := services.AsError(err)
		if e.Kind == services.KindInternal {
			h.log.Error().Err(err).Msg("Payment webhook failed")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": e.Message})
			return
		}
		h.log.Warn().Str("reason", e.Message).Msg("Payment webhook rejected")
		failMessage(c, e.Message)
		return
	}
	ok(c, nil)
}
