package httptransport

import (
	"log/slog"

	"github.com/curaview/patient-portal/internal/transport/http/handler"
	"github.com/curaview/patient-portal/internal/transport/http/middleware"
	"github.com/curaview/patient-portal/internal/usecase"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

func NewRouter(logger *slog.Logger, authHandler *handler.AuthHandler, accountHandler *handler.AccountHandler, authority *usecase.TokenAuthority) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	auth := r.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.DELETE("/logout", authHandler.Logout)
	auth.GET("/confirm", authHandler.Confirm)
	auth.POST("/confirm/resend", authHandler.ResendConfirmation)
	auth.POST("/reset-password/request", authHandler.RequestPasswordReset)
	auth.POST("/reset-password", authHandler.ResetPassword)

	// Everything under /account requires a live session cookie.
	account := r.Group("/account", middleware.SessionAuth(authority))
	account.GET("/me", accountHandler.Me)
	account.PUT("/password", accountHandler.UpdatePassword)
	account.PUT("/profile", accountHandler.UpdateProfile)
	account.POST("/email", accountHandler.RequestEmailChange)
	account.POST("/email/confirm", accountHandler.ConfirmContactChange)
	account.POST("/phone", accountHandler.RequestPhoneChange)
	account.POST("/phone/confirm", accountHandler.ConfirmContactChange)

	return r
}
