package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/prescripto-api/internal/middleware"
)

type EmailRequest struct {
	Email string `json:"email" form:"email"`
}

// VerifyOTPRequest accepts the code as a string or a JSON number.
type VerifyOTPRequest struct {
	Email string      `json:"email"`
	OTP   interface{} `json:"otp"`
}

type ResetPasswordRequest struct {
	Email      string `json:"email" form:"email"`
	Password   string `json:"password" form:"password"`
	ResetToken string `json:"resetToken" form:"resetToken"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" form:"currentPassword"`
	NewPassword     string `json:"newPassword" form:"newPassword"`
}

type ContactRequest struct {
	Name    string `json:"name" form:"name"`
	Email   string `json:"email" form:"email"`
	Subject string `json:"subject" form:"subject"`
	Message string `json:"message" form:"message"`
}

func (h *Handler) SendResetPasswordEmail(c *gin.Context) {
	var req EmailRequest
	if !bind(c, &req, "Email is required") {
		return
	}
	if err := h.svc.Passwords.RequestReset(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err)
		return
	}
	okMessage(c, "OTP sent to the email")
}

func (h *Handler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failMessage(c, "OTP is required")
		return
	}
	token, err := h.svc.Passwords.VerifyOTP(c.Request.Context(), req.Email, otpString(req.OTP))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"message": "OTP verified successfully", "resetToken": token})
}

func otpString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !bind(c, &req, "Email is required") {
		return
	}
	if err := h.svc.Passwords.Reset(c.Request.Context(), req.Email, req.Password, req.ResetToken); err != nil {
		h.fail(c, err)
		return
	}
	okMessage(c, "Password reset successfully")
}

func (h *Handler) ChangeUserPassword(c *gin.Context) {
	var req ChangePasswordRequest
	if !bind(c, &req, "Current password is required") {
		return
	}
	if err := h.svc.Passwords.ChangeUserPassword(c.Request.Context(), middleware.PrincipalID(c), req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(c, err)
		return
	}
	okMessage(c, "Password changed successfully")
}

func (h *Handler) ChangeDoctorPassword(c *gin.Context) {
	var req ChangePasswordRequest
	if !bind(c, &req, "Current password is required") {
		return
	}
	if err := h.svc.Passwords.ChangeDoctorPassword(c.Request.Context(), middleware.PrincipalID(c), req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(c, err)
		return
	}
	okMessage(c, "Password changed successfully")
}

func (h *Handler) ContactUs(c *gin.Context) {
	var req ContactRequest
	if !bind(c, &req, "All fields are required") {
		return
	}
	if err := h.svc.Contact.Send(c.Request.Context(), req.Name, req.Email, req.Subject, req.Message); err != nil {
		h.fail(c, err)
		return
	}
	okMessage(c, "Message sent successfully")
}
