package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/prescripto-api/internal/middleware"
)

type BookAppointmentRequest struct {
	DocID    string `json:"docId" form:"docId"`
	SlotDate string `json:"slotDate" form:"slotDate"`
	SlotTime string `json:"slotTime" form:"slotTime"`
}

type AppointmentIDRequest struct {
	AppointmentID string `json:"appointmentId" form:"appointmentId" binding:"required"`
}

func (h *Handler) BookAppointment(c *gin.Context) {
	var req BookAppointmentRequest
	if !bind(c, &req, "Missing Details") {
		return
	}
	appt, err := h.svc.Appointments.Book(c.Request.Context(), middleware.PrincipalID(c), req.DocID, req.SlotDate, req.SlotTime)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"message": "Appointment booked successfully", "appointmentId": appt.ID.Hex()})
}

func (h *Handler) UserAppointments(c *gin.Context) {
	appts, err := h.svc.Appointments.ListForUser(c.Request.Context(), middleware.PrincipalID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"appointments": appts})
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	var req AppointmentIDRequest
	if !bind(c, &req, "Appointment not found") {
		return
	}
	if err := h.svc.Appointments.CancelByUser(c.Request.Context(), middleware.PrincipalID(c), req.AppointmentID); err != nil {
		h.fail(c, err)
		return
	}
	okMessage(c, "Appointment cancelled successfully")
}

func (h *Handler) DoctorAppointments(c *gin.Context) {
	appts, err := h.svc.Appointments.ListForDoctor(c.Request.Context(), middleware.PrincipalID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"appointments": appts})
}

func (h *Handler) CompleteAppointment(c *gin.Context) {
	var req AppointmentIDRequest
	if !bind(c, &req, "Appointment not found") {
		return
	}
	if err := h.svc.Appointments.Complete(c.Request.Context(), middleware.PrincipalID(c), req.AppointmentID); err != nil {
		h.fail(c, err)
		return
	}
	okMessage(c, "Appointment completed successfully")
}

func (h *Handler) DoctorCancelAppointment(c *gin.Context) {
	var req AppointmentIDRequest
	if !bind(c, &req, "Appointment not found") {
		return
	}
	if err := h.svc.Appointments.CancelByDoctor(c.Request.Context(), middleware.PrincipalID(c), req.AppointmentID); err != nil {
		h.fail(c, err)
		return
	}
	okMessage(c, "Appointment cancelled successfully")
}

func (h *Handler) AllAppointments(c *gin.Context) {
	appts, err := h.svc.Appointments.ListAll(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"appointments": appts})
}

func (h *Handler) AdminCancelAppointment(c *gin.Context) {
	var req AppointmentIDRequest
	if !bind(c, &req, "Appointment not found") {
		return
	}
	if err := h.svc.Appointments.CancelByAdmin(c.Request.Context(), req.AppointmentID); err != nil {
		h.fail(c, err)
		return
	}
	okMessage(c, "Appointment cancelled successfully")
}
