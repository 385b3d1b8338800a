package routes

import (
	adminapi "teamspace-backend/internal/api/admin"
	authapi "teamspace-backend/internal/api/auth"
	billingapi "teamspace-backend/internal/api/billing"
	orgsapi "teamspace-backend/internal/api/orgs"
	plansapi "teamspace-backend/internal/api/plans"
	stripewebhooks "teamspace-backend/internal/api/stripewebhook"
	usersapi "teamspace-backend/internal/api/users"
	"teamspace-backend/internal/app/http/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine) {
	// Webhook stays outside the sanitizer: signature verification needs the
	// raw body bytes untouched.
	r.POST("/webhook", stripewebhooks.StripeWebhook)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	public := r.Group("/")
	public.Use(middleware.SanitizeInputMiddleware())

	public.POST("/register", authapi.Register)
	public.POST("/login", authapi.Login)
	public.GET("/plans", plansapi.ListPlans)
	public.GET("/verify", usersapi.VerifyEmail)
	public.POST("/resend-verification", authapi.ResendVerification)
	public.POST("/request-password-reset", authapi.RequestPasswordReset)
	public.POST("/reset-password", authapi.ResetPassword)

	public.GET("/auth/google", authapi.GoogleStart)
	public.GET("/auth/google/callback", authapi.GoogleCallback)

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware())
	auth.GET("/me", usersapi.GetCurrentUser)
	auth.POST("/change-password", authapi.ChangePassword)

	auth.GET("/organizations", orgsapi.ListMyOrganizations)
	auth.POST("/organizations", orgsapi.CreateOrganization)
	auth.GET("/organizations/:id/members", orgsapi.ListOrganizationMembers)

	// Subscribed organizations: growing the roster needs an active
	// subscription on the organization itself.
	subscribed := auth.Group("/")
	subscribed.Use(middleware.RequireActiveSubscription())
	subscribed.POST("/organizations/:id/members", orgsapi.AddOrganizationMember)

	auth.GET("/billing/subscription", billingapi.GetCurrentSubscription)
	auth.GET("/billing/organizations/:id/subscription", billingapi.GetOrganizationSubscription)
	auth.GET("/billing/payments", billingapi.GetPaymentHistory)
	auth.POST("/billing/checkout", billingapi.CreateCheckoutSession)
	auth.POST("/billing/portal", billingapi.CreateBillingPortal)
	auth.POST("/billing/cancel", billingapi.CancelSubscription)
	auth.POST("/billing/reactivate", billingapi.ReactivateSubscription)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.RequireRole("admin"))
	admin.GET("/users", adminapi.ListUsers)
	admin.GET("/subscriptions", adminapi.ListSubscriptions)
	admin.GET("/payments", adminapi.ListPayments)
	admin.PATCH("/subscriptions/:id", adminapi.UpdateSubscription)
	admin.POST("/sync-plans", plansapi.SyncPlansFromStripe)
}
