package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/harentsoaR/prescripto-api/internal/middleware"
	"github.com/harentsoaR/prescripto-api/internal/services"
	"github.com/harentsoaR/prescripto-api/internal/utils"
)

// Handler holds the services every endpoint is a method over.
type Handler struct {
	svc *services.Services
	log zerolog.Logger
}

func NewHandler(svc *services.Services, log zerolog.Logger) *Handler {
	return &Handler{
		svc: svc,
		log: log.With().Str("component", "http").Logger(),
	}
}

// RegisterRoutes mounts the patient, doctor and admin APIs on r.
func (h *Handler) RegisterRoutes(r *gin.Engine, jwt *utils.JWTManager) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok"})
	})

	authUser := middleware.AuthMiddleware(jwt, utils.RoleUser)
	authDoctor := middleware.AuthMiddleware(jwt, utils.RoleDoctor)
	authAdmin := middleware.AuthMiddleware(jwt, utils.RoleAdmin)

	admin := r.Group("/api/admin")
	{
		admin.POST("/login", h.LoginAdmin)
		admin.POST("/add-doctor", authAdmin, h.AddDoctor)
		admin.POST("/all-doctors", authAdmin, h.AllDoctors)
		admin.POST("/change-availability", authAdmin, h.ChangeAvailability)
		admin.GET("/all-appointments", authAdmin, h.AllAppointments)
		admin.POST("/cancel-appointment", authAdmin, h.AdminCancelAppointment)
		admin.GET("/dashboard", authAdmin, h.AdminDashboard)
		admin.POST("/remove-doctor", authAdmin, h.RemoveDoctor)
	}

	doctor := r.Group("/api/doctor")
	{
		doctor.POST("/login", h.LoginDoctor)
		doctor.GET("/list", h.DoctorList)
		doctor.GET("/appointments", authDoctor, h.DoctorAppointments)
		doctor.POST("/appointment-completed", authDoctor, h.CompleteAppointment)
		doctor.POST("/appointment-cancelled", authDoctor, h.DoctorCancelAppointment)
		doctor.GET("/dashboard", authDoctor, h.DoctorDashboard)
		doctor.GET("/profile", authDoctor, h.DoctorProfile)
		doctor.POST("/update-profile", authDoctor, h.UpdateDoctorProfile)
		doctor.GET("/reviews", authDoctor, h.DoctorReviews)
		doctor.POST("/delete-review", authDoctor, h.DeleteReview)
		doctor.POST("/change-password", authDoctor, h.ChangeDoctorPassword)
	}

	user := r.Group("/api/user")
	{
		user.POST("/register", h.RegisterUser)
		user.POST("/login", h.LoginUser)
		user.GET("/getProfile", authUser, h.GetProfile)
		user.POST("/updateProfile", authUser, h.UpdateProfile)
		user.POST("/bookAppointment", authUser, h.BookAppointment)
		user.GET("/appointments", authUser, h.UserAppointments)
		user.POST("/cancelAppointment", authUser, h.CancelAppointment)
		user.POST("/makePayment", authUser, h.MakePayment)
		user.POST("/verifyPayment", authUser, h.VerifyPayment)
		user.POST("/payment-webhook", h.PaymentWebhook)
		user.POST("/contactUs", h.ContactUs)
		user.POST("/addReview", authUser, h.AddReview)
		user.GET("/reviewedAppointments", authUser, h.ReviewedAppointments)
		user.GET("/reviews", h.AllReviews)
		user.POST("/sendResetPasswordEmail", h.SendResetPasswordEmail)
		user.POST("/verifyOTP", h.VerifyOTP)
		user.POST("/resetPassword", h.ResetPassword)
		user.POST("/changePassword", authUser, h.ChangeUserPassword)
	}
}
