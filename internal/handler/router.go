package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/feeflow/feeflow-api/internal/middleware"
	"github.com/feeflow/feeflow-api/internal/service"
)

// RouterParams groups the handlers the route table needs.
type RouterParams struct {
	Auth        *AuthHandler
	Students    *StudentHandler
	Classes     *ClassHandler
	Enrollments *EnrollmentHandler
	Fees        *FeeHandler
	Reminders   *ReminderHandler
	Dashboard   *DashboardHandler
	Reports     *ReportHandler
	AuthService *service.AuthService
}

// RegisterRoutes mounts every API route under the given prefix. Auth
// endpoints are public; everything else requires a bearer token.
func RegisterRoutes(r *gin.Engine, prefix string, p RouterParams) {
	api := r.Group(prefix)

	auth := api.Group("/auth")
	auth.POST("/register", p.Auth.Register)
	auth.POST("/login", p.Auth.Login)

	protected := api.Group("")
	protected.Use(middleware.JWT(p.AuthService))

	protected.GET("/auth/me", p.Auth.Me)

	students := protected.Group("/students")
	students.GET("", p.Students.List)
	students.POST("", p.Students.Create)
	students.GET("/:id", p.Students.Get)
	students.PUT("/:id", p.Students.Update)
	students.DELETE("/:id", p.Students.Delete)

	classes := protected.Group("/classes")
	classes.GET("", p.Classes.List)
	classes.POST("", p.Classes.Create)
	classes.GET("/:id", p.Classes.Get)
	classes.PUT("/:id", p.Classes.Update)
	classes.DELETE("/:id", p.Classes.Delete)
	classes.POST("/:id/enroll", p.Classes.Enroll)
	classes.GET("/:id/students", p.Classes.Students)

	enrollments := protected.Group("/enrollments")
	enrollments.GET("", p.Enrollments.List)
	enrollments.POST("", p.Enrollments.Create)
	enrollments.DELETE("/:id", p.Enrollments.Delete)

	fees := protected.Group("/fees")
	fees.POST("/generate", p.Fees.Generate)
	fees.GET("", p.Fees.List)
	fees.GET("/:id", p.Fees.Get)
	fees.POST("/:id/pay", p.Fees.Pay)
	fees.POST("/:id/waive", p.Fees.Waive)
	fees.GET("/:id/payments", p.Fees.Payments)
	fees.GET("/:id/reminders", p.Fees.Reminders)
	fees.POST("/:id/remind", p.Reminders.SendOne)

	protected.POST("/reminders/run", p.Reminders.Run)

	protected.GET("/dashboard/summary", p.Dashboard.Summary)

	reports := protected.Group("/reports")
	reports.GET("", p.Reports.List)
	reports.POST("/fee-collection", p.Reports.Generate)
	reports.GET("/:id", p.Reports.Get)
}
