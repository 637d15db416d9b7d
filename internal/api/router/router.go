package router

import (
	"context"
	"net/http"
	"time"

	"github.com/cuongbtq/labor-dispatch/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// HealthCheck pings one backing service
type HealthCheck func(ctx context.Context) error

// Options holds router-level settings
type Options struct {
	ServiceName    string
	AllowedOrigins []string
	HealthChecks   map[string]HealthCheck
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, opts Options) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware(opts.AllowedOrigins))

	r.GET("/health", healthHandler(opts))

	jobHandler := handler.NewJobHandler(deps)
	laborerHandler := handler.NewLaborerHandler(deps)
	sobrietyHandler := handler.NewSobrietyHandler(deps)
	walletHandler := handler.NewWalletHandler(deps)
	wsHandler := handler.NewWSHandler(deps)

	r.GET("/ws", wsHandler.Serve)

	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.CreateJob)
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/:job_id", jobHandler.GetJob)
			jobs.POST("/:job_id/accept", jobHandler.AcceptJob)
			jobs.POST("/:job_id/start", jobHandler.StartJob)
			jobs.POST("/:job_id/submit", jobHandler.SubmitJob)
			jobs.POST("/:job_id/complete", jobHandler.CompleteJob)
			jobs.POST("/:job_id/cancel", jobHandler.CancelJob)
		}

		laborers := v1.Group("/laborers")
		{
			laborers.GET("/:laborer_id", laborerHandler.GetProfile)
			laborers.PUT("/:laborer_id/profile", laborerHandler.UpsertProfile)
			laborers.PUT("/:laborer_id/availability", laborerHandler.UpdateAvailability)
		}

		sobriety := v1.Group("/sobriety-check")
		{
			sobriety.POST("", sobrietyHandler.SubmitCheck)
			sobriety.POST("/request-review", sobrietyHandler.RequestReview)
			sobriety.GET("/status/:laborer_id", sobrietyHandler.GetStatus)
		}

		v1.GET("/wallet/:laborer_id", walletHandler.GetWallet)

		admin := v1.Group("/admin")
		{
			admin.GET("/sobriety-reviews", sobrietyHandler.ListReviews)
			admin.POST("/sobriety-reviews/:check_id", sobrietyHandler.DecideReview)
			admin.POST("/payments/:payment_id/approve", walletHandler.ApprovePayment)
		}
	}

	return r
}

func healthHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := make(map[string]string, len(opts.HealthChecks))
		for name, check := range opts.HealthChecks {
			if err := check(ctx); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		health := "healthy"
		if status != http.StatusOK {
			health = "unhealthy"
		}
		c.JSON(status, gin.H{
			"status":  health,
			"service": opts.ServiceName,
			"checks":  checks,
		})
	}
}
