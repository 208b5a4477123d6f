package handlers

import (
	"encoding/json"
	"mime/multipart"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/prescripto-api/internal/middleware"
	"github.com/harentsoaR/prescripto-api/internal/models"
	"github.com/harentsoaR/prescripto-api/internal/services"
)

type RegisterUserRequest struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func (h *Handler) RegisterUser(c *gin.Context) {
	var req RegisterUserRequest
	if !bind(c, &req, "All fields are required") {
		return
	}
	token, err := h.svc.Auth.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"token": token})
}

func (h *Handler) LoginUser(c *gin.Context) {
	var req LoginRequest
	if !bind(c, &req, "Invalid credentials") {
		return
	}
	token, err := h.svc.Auth.LoginUser(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"token": token})
}

func (h *Handler) LoginDoctor(c *gin.Context) {
	var req LoginRequest
	if !bind(c, &req, "Invalid credentials") {
		return
	}
	token, err := h.svc.Auth.LoginDoctor(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"message": "Logged in successfully", "token": token})
}

func (h *Handler) LoginAdmin(c *gin.Context) {
	var req LoginRequest
	if !bind(c, &req, "Invalid credentials") {
		return
	}
	token, err := h.svc.Auth.LoginAdmin(req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"token": token})
}

func (h *Handler) GetProfile(c *gin.Context) {
	user, err := h.svc.Users.Profile(c.Request.Context(), middleware.PrincipalID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"userData": user})
}

// UpdateProfile takes a multipart form; address is a JSON object string.
func (h *Handler) UpdateProfile(c *gin.Context) {
	update := models.ProfileUpdate{
		Name:   c.PostForm("name"),
		Gender: c.PostForm("gender"),
		DOB:    c.PostForm("dob"),
		Phone:  c.PostForm("phone"),
	}
	if raw := c.PostForm("address"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &update.Address); err != nil {
			failMessage(c, "Invalid address")
			return
		}
	}

	image, closeImage, err := optionalImage(c)
	if err != nil {
		failMessage(c, "Invalid image")
		return
	}
	defer closeImage()

	if err := h.svc.Users.UpdateProfile(c.Request.Context(), middleware.PrincipalID(c), update, image); err != nil {
		h.fail(c, err)
		return
	}
	okMessage(c, "Profile updated successfully")
}

// optionalImage opens the "image" form file when one was sent.
func optionalImage(c *gin.Context) (*services.ImageUpload, func(), error) {
	header, err := c.FormFile("image")
	if err != nil {
		return nil, func() {}, nil
	}
	return openUpload(header)
}

func openUpload(header *multipart.FileHeader) (*services.ImageUpload, func(), error) {
	f, err := header.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &services.ImageUpload{File: f, Filename: header.Filename}, func() { f.Close() }, nil
}
