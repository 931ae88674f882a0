package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/zscore-fintech/zscore-engine/internal/cache"
	"github.com/zscore-fintech/zscore-engine/internal/config"
	"github.com/zscore-fintech/zscore-engine/internal/database"
	"github.com/zscore-fintech/zscore-engine/internal/engine"
	"github.com/zscore-fintech/zscore-engine/internal/errors"
	"github.com/zscore-fintech/zscore-engine/internal/explain"
	"github.com/zscore-fintech/zscore-engine/internal/gamification"
	"github.com/zscore-fintech/zscore-engine/internal/leaderboard"
	"github.com/zscore-fintech/zscore-engine/internal/model"
	"github.com/zscore-fintech/zscore-engine/internal/monitoring"
	"github.com/zscore-fintech/zscore-engine/internal/privacy"
	"github.com/zscore-fintech/zscore-engine/internal/ratelimit"
	"github.com/zscore-fintech/zscore-engine/internal/risk"
	"github.com/zscore-fintech/zscore-engine/internal/security"
	"github.com/zscore-fintech/zscore-engine/internal/types"
)

func main() {
	// Structured logging setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from YAML with environment overrides
	cfg, err := config.Load(getEnvOrDefault("CONFIG_PATH", "config.yaml"))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize database and repository
	db, err := database.NewDB(cfg.Server.DataDir)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer errors.SafeClose(db, "database")

	repo := database.NewRepository(db)

	// Rehydrate the gamification ledger from the persisted event log
	ledger := gamification.NewLedger(cfg.Gamification)
	events, err := repo.LoadEvents(context.Background())
	if err != nil {
		slog.Error("Failed to load gamification events", "error", err)
		os.Exit(1)
	}
	ledger.Rehydrate(events)
	slog.Info("Gamification ledger rehydrated", "events", len(events))

	// Train the initial model snapshot
	trainStart := time.Now()
	store, err := model.NewStore(cfg.Model)
	if err != nil {
		slog.Error("Failed to train initial model", "error", err)
		os.Exit(1)
	}
	snap := store.Snapshot()
	slog.Info("Initial model trained",
		"version", snap.Version,
		"auc", snap.Metrics.AUC,
		"duration", time.Since(trainStart).String())

	eng := engine.New(cfg, logger, store, ledger)

	// Initialize privacy and leaderboard services
	privacyService := privacy.NewService(db, repo)
	leaderboardService := leaderboard.NewService(db, ledger)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Warm up leaderboard cache and start auto-refresh
	go func() {
		leaderboardService.WarmCache()
		leaderboardService.StartAutoRefresh(rootCtx, 10*time.Minute)
	}()

	// Schedule data cleanup (runs daily)
	retentionDays := 365
	if raw := os.Getenv("RETENTION_DAYS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			retentionDays = n
		}
	}
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-rootCtx.Done():
				return
			case <-ticker.C:
				if err := privacyService.ScheduleDataCleanup(rootCtx, retentionDays); err != nil {
					slog.Error("Failed to schedule data cleanup", "error", err)
				}
			}
		}
	}()

	// Initialize monitoring system
	appMetrics := monitoring.NewMetrics()
	appLogger := monitoring.NewLogger()

	// Initialize rate limiting with Redis and in-memory fallback
	redisClient, err := ratelimit.NewRedisClient(cfg.Server.RedisAddr, os.Getenv("REDIS_PASSWORD"), 0)
	if err != nil {
		slog.Warn("Redis unavailable, rate limiting degrades to in-memory", "error", err)
	}
	defer errors.SafeClose(redisClient, "redis")
	rateCfg := ratelimit.DefaultConfig()
	limiter := ratelimit.NewRateLimiter(redisClient, rateCfg, appMetrics)

	r := gin.New()

	// Add monitoring middleware first (to capture all requests)
	r.Use(monitoring.MonitoringMiddleware(appMetrics, appLogger))

	// Add error handling middleware
	r.Use(errors.ErrorHandler())
	r.Use(errors.RecoveryHandler())

	// Security middleware setup
	securityConfig := security.DefaultSecurityConfig()
	securityMiddleware := security.NewSecurityMiddleware(securityConfig)

	if err := r.SetTrustedProxies(securityConfig.TrustedProxies); err != nil {
		slog.Error("Failed to set trusted proxies", "error", err)
		os.Exit(1)
	}

	r.Use(securityMiddleware.SecurityHeaders)
	r.Use(securityMiddleware.RequestTimeout)
	r.Use(securityMiddleware.ValidateContentType)
	r.Use(securityMiddleware.LimitBodySize)

	r.Use(cors.New(cors.Config{
		AllowOrigins:     securityConfig.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.Use(limiter.IPRateLimitMiddleware())

	// Assessments depend on the model snapshot and live ledger state, so both
	// feed the cache key; an action or retrain makes prior entries unreachable
	appCache := cache.NewCache(15 * time.Minute)
	assessVersion := func() string {
		return eng.Store().Snapshot().Version + ":" + strconv.FormatUint(ledger.Revision(), 10)
	}
	r.Use(appCache.Middleware("/assess", appMetrics, assessVersion))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":        "ok",
			"timestamp":     time.Now().Format(time.RFC3339),
			"model_version": eng.Store().Snapshot().Version,
			"database":      db.GetPoolStats(),
		})
	})

	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, appMetrics.GetStats())
	})

	r.GET("/cache/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, appCache.Stats())
	})

	r.GET("/ratelimit/status", limiter.HandleRateLimitStatus())
	r.POST("/ratelimit/reset", limiter.HandleRateLimitReset())
	r.POST("/ratelimit/invalidate/:ip", limiter.HandleInvalidateIP())

	r.GET("/model", func(c *gin.Context) {
		s := eng.Store().Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"version":   s.Version,
			"metrics":   s.Metrics,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	r.POST("/model/retrain", func(c *gin.Context) {
		start := time.Now()
		s, err := eng.Retrain(c.Request.Context())
		if err != nil {
			appErr := errors.ToAppError(err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		// Cached assessments were produced by the old snapshot
		appCache.Clear()
		appMetrics.IncrementRetrain()
		appLogger.RetrainLogger(s.Version, s.Metrics.AUC, s.Metrics.Accuracy, time.Since(start))

		c.JSON(http.StatusOK, gin.H{
			"version": s.Version,
			"metrics": s.Metrics,
		})
	})

	r.POST("/assess",
		limiter.EndpointRateLimitMiddleware("assess", rateCfg.AssessLimitPerMin),
		func(c *gin.Context) {
			start := time.Now()

			var req types.AssessRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				appErr := errors.NewValidationError("invalid request body", err.Error())
				errors.LogError(c, appErr)
				c.JSON(appErr.HTTPStatus, appErr)
				return
			}

			assessment, err := eng.Assess(c.Request.Context(), &req.Record)
			if err != nil {
				appErr := errors.ToAppError(err)
				errors.LogError(c, appErr)
				c.JSON(appErr.HTTPStatus, appErr)
				return
			}

			if err := repo.SaveAssessment(c.Request.Context(), assessment, req.Record.Version); err != nil {
				// Persistence is best effort: the applicant still gets an answer
				slog.Error("Failed to persist assessment",
					"assessment_id", assessment.ID, "error", err)
			}

			appMetrics.IncrementAssessment()
			if assessment.Prediction.Fallback {
				appMetrics.IncrementFallbackPrediction()
			}
			if assessment.Explanation != nil && assessment.Explanation.Quality == explain.QualityDegraded {
				appMetrics.IncrementDegradedExplanation()
			}
			if assessment.Decision.Category == risk.InsufficientData {
				appMetrics.IncrementInsufficientData()
			}

			appLogger.AssessmentLogger(
				assessment.ApplicantID,
				string(assessment.Decision.Category),
				assessment.Prediction.PD,
				assessment.Trust.Overall,
				assessment.Obscurity.Index,
				assessment.Prediction.Fallback,
				time.Since(start))

			c.JSON(http.StatusOK, assessment)
		})

	r.GET("/leaderboard", func(c *gin.Context) {
		limit := 25
		if raw := c.Query("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		resp, err := leaderboardService.Top(c.Request.Context(), limit)
		if err != nil {
			appErr := errors.ToAppError(err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	applicants := r.Group("/applicants/:id", securityMiddleware.RequireApplicantID)

	// Consent withdrawal: erase the applicant from storage and the ledger
	applicants.DELETE("", func(c *gin.Context) {
		applicantID := c.Param("id")
		if err := privacyService.DeleteApplicantData(c.Request.Context(), applicantID); err != nil {
			appErr := errors.ToAppError(err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		ledger.Forget(applicantID)
		c.JSON(http.StatusOK, gin.H{
			"applicant_id": applicantID,
			"deleted":      true,
		})
	})

	applicants.POST("/actions",
		limiter.EndpointRateLimitMiddleware("actions", rateCfg.ActionLimitPerMin),
		func(c *gin.Context) {
			var req types.ActionRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				appErr := errors.NewValidationError("invalid request body", err.Error())
				errors.LogError(c, appErr)
				c.JSON(appErr.HTTPStatus, appErr)
				return
			}

			applicantID := c.Param("id")
			event, state, err := ledger.Record(
				applicantID, gamification.ActionType(req.Action), time.Now().UTC())
			if err != nil {
				appErr := errors.ToAppError(err)
				errors.LogError(c, appErr)
				c.JSON(appErr.HTTPStatus, appErr)
				return
			}

			if err := repo.AppendEvent(c.Request.Context(), event); err != nil {
				slog.Error("Failed to persist gamification event",
					"event_id", event.ID, "error", err)
			}

			appMetrics.IncrementGamificationAction()
			appLogger.ActionLogger(applicantID, string(event.Type), event.Credits,
				state.TrustBar, state.Level)

			c.JSON(http.StatusOK, gin.H{
				"event": event,
				"state": state,
			})
		})

	applicants.GET("/gamification", func(c *gin.Context) {
		c.JSON(http.StatusOK, ledger.State(c.Param("id")))
	})

	applicants.GET("/assessments", func(c *gin.Context) {
		limit := 20
		if raw := c.Query("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		summaries, err := repo.ListAssessments(c.Request.Context(), c.Param("id"), limit)
		if err != nil {
			appErr := errors.ToAppError(err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"applicant_id": c.Param("id"),
			"assessments":  summaries,
		})
	})

	applicants.GET("/assessments/:assessmentID", func(c *gin.Context) {
		row, err := repo.GetAssessment(c.Request.Context(), c.Param("assessmentID"))
		if err != nil {
			appErr := errors.ToAppError(err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		if row == nil || row.ApplicantID != c.Param("id") {
			c.JSON(http.StatusNotFound, gin.H{"error": "assessment not found"})
			return
		}

		resp := gin.H{"assessment": row}
		if row.Explanation != "" {
			resp["explanation"] = json.RawMessage(row.Explanation)
		}
		c.JSON(http.StatusOK, resp)
	})

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
