package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classattend/internal/attendance"
	"classattend/internal/auth"
	"classattend/internal/barcode"
	"classattend/internal/clock"
	"classattend/internal/config"
	"classattend/internal/httpmiddleware"
	"classattend/internal/metrics"
	"classattend/internal/queue"
	"classattend/internal/schedule"
	"classattend/internal/store"
	"classattend/internal/student"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classattend:jobs")
	}

	clk := clock.System{}
	schedules := schedule.NewRepository(db.Client)
	students := student.NewRepository(db.Client)
	barcodes := barcode.NewRepository(db.Client)
	records := attendance.NewRepository(db.Client)

	issuer := barcode.NewIssuer(barcodes, schedules, clk)
	renewer := barcode.NewRenewer(barcodes, clk, cfg.RenewMargin)
	scanner := attendance.NewScanner(records, barcodes, renewer, clk)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/auth/login", func(c *gin.Context) {
		var req struct {
			StudentID string `json:"student_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		st, err := students.Get(c.Request.Context(), req.StudentID)
		if err != nil {
			if errors.Is(err, student.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		tokens, err := auth.Issue(st.ID, st.DepartmentID, st.YearLevel, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	admin := r.Group("/v1", auth.AdminKey(cfg.AdminKey))

	admin.POST("/schedules/:id/barcodes", func(c *gin.Context) {
		report, err := issuer.BulkIssueForSchedule(c.Request.Context(), c.Param("id"), adminActor(c))
		if err != nil {
			if errors.Is(err, schedule.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		metrics.TokensIssued.WithLabelValues("bulk").Add(float64(report.Created))
		for _, id := range report.TokenIDs {
			if err := q.Publish(c.Request.Context(), queue.Message{Type: queue.TypeRender, Body: []byte(id)}); err != nil {
				log.Printf("render job publish failed for %s: %v", id, err)
			}
		}
		c.JSON(http.StatusOK, report)
	})

	admin.POST("/schedules/:id/barcodes/:day/:index", func(c *gin.Context) {
		day, err := schedule.ParseWeekday(c.Param("day"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		index, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "index must be a number"})
			return
		}

		token, err := issuer.IssueToken(c.Request.Context(), c.Param("id"), day, index, adminActor(c))
		if err != nil {
			if errors.Is(err, schedule.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		metrics.TokensIssued.WithLabelValues("single").Inc()
		if err := q.Publish(c.Request.Context(), queue.Message{Type: queue.TypeRender, Body: []byte(token.ID)}); err != nil {
			log.Printf("render job publish failed for %s: %v", token.ID, err)
		}
		c.JSON(http.StatusCreated, token)
	})

	admin.POST("/barcodes/renew", func(c *gin.Context) {
		report, err := renewer.RenewAllDueToday(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		metrics.Renewals.Add(float64(report.Renewed))
		c.JSON(http.StatusOK, report)
	})

	authGroup := r.Group("/v1", auth.StudentAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.POST("/attendance/scan", func(c *gin.Context) {
		var req struct {
			Code string `json:"code"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		claimsAny, _ := c.Get("claims")
		claims, _ := claimsAny.(auth.Claims)
		st, err := students.Get(c.Request.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, student.ErrNotFound) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown student"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		result, err := scanner.Scan(c.Request.Context(), req.Code, st)
		if err != nil {
			writeScanError(c, err)
			return
		}
		if result.Renewed {
			metrics.Renewals.Inc()
		}
		if result.AlreadyRecorded {
			metrics.Scans.WithLabelValues("duplicate").Inc()
		} else {
			metrics.Scans.WithLabelValues("ok").Inc()
		}
		c.JSON(http.StatusOK, result)
	})

	authGroup.GET("/attendance", func(c *gin.Context) {
		claimsAny, _ := c.Get("claims")
		claims, _ := claimsAny.(auth.Claims)
		limit, offset := 50, 0
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		if v := c.Query("offset"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				offset = parsed
			}
		}
		recs, err := records.ListByStudent(c.Request.Context(), claims.Subject, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": recs})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// writeScanError maps the scan error taxonomy onto HTTP responses and
// increments the matching outcome counter.
func writeScanError(c *gin.Context, err error) {
	var expired *attendance.ExpiredError
	var mismatch *attendance.CohortMismatchError
	switch {
	case errors.Is(err, attendance.ErrEmptyCode):
		metrics.Scans.WithLabelValues("empty").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, barcode.ErrNotFound):
		metrics.Scans.WithLabelValues("not_found").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "barcode not found or inactive"})
	case errors.As(err, &expired):
		metrics.Scans.WithLabelValues("expired").Inc()
		c.JSON(http.StatusGone, gin.H{"error": expired.Error(), "expired_at": expired.ExpiredAt})
	case errors.As(err, &mismatch):
		metrics.Scans.WithLabelValues("cohort_mismatch").Inc()
		c.JSON(http.StatusForbidden, gin.H{"error": mismatch.Error()})
	default:
		metrics.Scans.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func adminActor(c *gin.Context) string {
	if actor := c.GetHeader("X-Admin-Actor"); actor != "" {
		return actor
	}
	return "admin"
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Admin-Key, X-Admin-Actor")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
