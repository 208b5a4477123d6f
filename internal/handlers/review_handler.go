package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/prescripto-api/internal/middleware"
)

type AddReviewRequest struct {
	DoctorID      string `json:"doctorId" form:"doctorId"`
	AppointmentID string `json:"appointmentId" form:"appointmentId"`
	Rating        int    `json:"rating" form:"rating"`
	Comment       string `json:"comment" form:"comment"`
}

type ReviewIDRequest struct {
	ReviewID string `json:"reviewId" form:"reviewId" binding:"required"`
}

func (h *Handler) AddReview(c *gin.Context) {
	var req AddReviewRequest
	if !bind(c, &req, "Missing required fields") {
		return
	}
	_, err := h.svc.Reviews.Add(c.Request.Context(), middleware.PrincipalID(c), req.DoctorID, req.AppointmentID, req.Rating, req.Comment)
	if err != nil {
		h.fail(c, err)
		return
	}
	okMessage(c, "Review added successfully")
}

func (h *Handler) ReviewedAppointments(c *gin.Context) {
	ids, err := h.svc.Reviews.ReviewedAppointments(c.Request.Context(), middleware.PrincipalID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"reviewedAppointmentIds": ids})
}

// AllReviews is public; ?doctorId= narrows it to one doctor.
func (h *Handler) AllReviews(c *gin.Context) {
	reviews, err := h.svc.Reviews.ListAll(c.Request.Context(), c.Query("doctorId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"reviews": reviews})
}

func (h *Handler) DoctorReviews(c *gin.Context) {
	reviews, err := h.svc.Reviews.ListForDoctor(c.Request.Context(), middleware.PrincipalID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"reviews": reviews})
}

func (h *Handler) DeleteReview(c *gin.Context) {
	var req ReviewIDRequest
	if !bind(c, &req, "Review not found") {
		return
	}
	if err := h.svc.Reviews.Remove(c.Request.Context(), middleware.PrincipalID(c), req.ReviewID); err != nil {
		h.fail(c, err)
		return
	}
	okMessage(c, "Review deleted successfully")
}
