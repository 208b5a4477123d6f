package handlers

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/prescripto-api/internal/middleware"
	"github.com/harentsoaR/prescripto-api/internal/models"
	"github.com/harentsoaR/prescripto-api/internal/services"
)

type DoctorIDRequest struct {
	DocID string `json:"docId" form:"docId" binding:"required"`
}

type UpdateDoctorProfileRequest struct {
	Fees      float64        `json:"fees" form:"fees"`
	Address   models.Address `json:"address"`
	Available bool           `json:"available" form:"available"`
}

// AddDoctor registers a doctor from the admin multipart form.
func (h *Handler) AddDoctor(c *gin.Context) {
	in := services.NewDoctor{
		Name:       c.PostForm("name"),
		Email:      c.PostForm("email"),
		Password:   c.PostForm("password"),
		Speciality: c.PostForm("speciality"),
		Degree:     c.PostForm("degree"),
		Experience: c.PostForm("experience"),
		About:      c.PostForm("about"),
	}
	if raw := strings.TrimSpace(c.PostForm("fees")); raw != "" {
		fees, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			failMessage(c, "Missing Details")
			return
		}
		in.Fees = fees
	}
	if raw := c.PostForm("address"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Address); err != nil {
			failMessage(c, "Missing Details")
			return
		}
	}

	image, closeImage, err := optionalImage(c)
	if err != nil {
		failMessage(c, "Image is required")
		return
	}
	defer closeImage()

	if _, err := h.svc.Doctors.Create(c.Request.Context(), in, image); err != nil {
		h.fail(c, err)
		return
	}
	okMessage(c, "Doctor Added")
}

func (h *Handler) AllDoctors(c *gin.Context) {
	doctors, err := h.svc.Doctors.List(c.Request.Context(), true)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"doctors": doctors})
}

func (h *Handler) DoctorList(c *gin.Context) {
	doctors, err := h.svc.Doctors.List(c.Request.Context(), false)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"doctors": doctors})
}

func (h *Handler) ChangeAvailability(c *gin.Context) {
	var req DoctorIDRequest
	if !bind(c, &req, "Doctor not found") {
		return
	}
	if err := h.svc.Doctors.ToggleAvailability(c.Request.Context(), req.DocID); err != nil {
		h.fail(c, err)
		return
	}
	okMessage(c, "Availability changed successfully")
}

func (h *Handler) RemoveDoctor(c *gin.Context) {
	var req DoctorIDRequest
	if !bind(c, &req, "Doctor not found") {
		return
	}
	if err := h.svc.Doctors.Remove(c.Request.Context(), req.DocID); err != nil {
		h.fail(c, err)
		return
	}
	okMessage(c, "Doctor removed successfully")
}

func (h *Handler) DoctorProfile(c *gin.Context) {
	doctor, err := h.svc.Doctors.Profile(c.Request.Context(), middleware.PrincipalID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"profileData": doctor})
}

func (h *Handler) UpdateDoctorProfile(c *gin.Context) {
	var req UpdateDoctorProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failMessage(c, "Missing Details")
		return
	}
	if err := h.svc.Doctors.UpdateProfile(c.Request.Context(), middleware.PrincipalID(c), req.Fees, req.Address, req.Available); err != nil {
		h.fail(c, err)
		return
	}
	okMessage(c, "Profile updated successfully")
}

func (h *Handler) AdminDashboard(c *gin.Context) {
	dash, err := h.svc.Dashboard.Admin(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"dashData": dash})
}

func (h *Handler) DoctorDashboard(c *gin.Context) {
	dash, err := h.svc.Dashboard.Doctor(c.Request.Context(), middleware.PrincipalID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"dashData": dash})
}
