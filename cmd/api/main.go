package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"rollcall/internal/auth"
	"rollcall/internal/config"
	"rollcall/internal/export"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/ledger"
	"rollcall/internal/logging"
	"rollcall/internal/metrics"
	"rollcall/internal/presence"
	"rollcall/internal/queue"
	"rollcall/internal/session"
	"rollcall/internal/store"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Env, cfg.LogLevel)

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.WithError(err).Fatal("http server failed")
	}
}

type healthChecker interface {
	Healthy(ctx context.Context) bool
}

func runHTTP(cfg config.App, log *logrus.Logger) error {
	var kv store.KV
	var health healthChecker
	var redisStore *store.Redis

	switch cfg.StoreBackend {
	case "redis":
		redisStore = store.NewRedis(cfg.RedisAddr, "")
		kv, health = redisStore, redisStore
	case "postgres":
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		kv, health = pg, pg
	default:
		kv = store.NewMemory()
		log.Warn("memory store selected: state is not shared across processes")
	}

	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		if redisStore == nil {
			redisStore = store.NewRedis(cfg.RedisAddr, "")
		}
		q = queue.NewRedisQueue(redisStore.Client, "rollcall:events")
	} else {
		q = queue.NewInMemory(64)
	}

	// Parse failures on stored state are policy, not errors: the value reads
	// as absent. They still get logged so corruption is visible.
	diag := func(key string, err error) {
		log.WithField("key", key).WithError(err).Warn("stored value unreadable, treating as empty")
	}

	sessions := session.NewManager(kv, session.WithDiagnostic(diag))
	records := ledger.New(kv, ledger.WithDiagnostic(diag))
	client := presence.NewClient(sessions, records)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Log session transitions at the same cadence the dashboards poll.
	watcher := presence.NewWatcher(sessions, cfg.PollInterval, log)
	go watcher.Run(ctx, func(s session.Session, ok bool) {
		if !ok {
			log.Info("no session published")
			return
		}
		log.WithFields(logrus.Fields{
			"code":     s.SessionCode,
			"active":   s.IsActive,
			"lecturer": s.LecturerName,
		}).Info("session state")
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		storeHealthy := health == nil || health.Healthy(c.Request.Context())
		status := http.StatusOK
		if !storeHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "store": storeHealthy})
	})

	r.POST("/v1/login", func(c *gin.Context) {
		var req struct {
			Name string `json:"name" binding:"required"`
			Role string `json:"role" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user, err := auth.NewUser(req.Name, req.Role)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if raw, err := json.Marshal(user); err == nil {
			if err := kv.Set(c.Request.Context(), store.KeyCurrentUser, raw); err != nil {
				log.WithError(err).Warn("persisting current user failed")
			}
		}

		token, err := auth.Issue(user, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"user":         user,
			"access_token": token.AccessToken,
			"expires_at":   token.ExpiresAt.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.UserAuth(cfg.JWTSigningKey, cfg.JWTIssuer))
	authGroup.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	lecturer := authGroup.Group("", auth.RequireRole(auth.RoleLecturer))
	student := authGroup.Group("", auth.RequireRole(auth.RoleStudent))

	lecturer.POST("/sessions/start", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		s, err := sessions.Start(c.Request.Context(), claims.Name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		metrics.SessionsStartedTotal.Inc()
		log.WithFields(logrus.Fields{"code": s.SessionCode, "lecturer": s.LecturerName}).Info("session started")
		c.JSON(http.StatusCreated, s)
	})

	lecturer.POST("/sessions/end", func(c *gin.Context) {
		s, ok, err := sessions.End(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no session to end"})
			return
		}
		c.JSON(http.StatusOK, s)
	})

	authGroup.GET("/sessions/current", func(c *gin.Context) {
		s, ok, err := sessions.Current(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no session published"})
			return
		}
		c.JSON(http.StatusOK, s)
	})

	student.POST("/attendance", func(c *gin.Context) {
		var req struct {
			Code             string `json:"code" binding:"required"`
			NetworkConnected *bool  `json:"network_connected" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		claims, _ := auth.FromContext(c)
		res, err := client.Submit(c.Request.Context(), claims.Subject, claims.Name, req.Code, *req.NetworkConnected)
		if err != nil {
			status, outcome := submitFailure(err)
			metrics.SubmissionsTotal.WithLabelValues(outcome).Inc()
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeAccepted).Inc()

		if err := q.Publish(c.Request.Context(), queue.Message{
			Type: queue.TypeRecorded,
			Record: ledger.Record{
				StudentID:   claims.Subject,
				StudentName: claims.Name,
				Timestamp:   res.Timestamp,
				Date:        res.Date,
				SessionCode: res.SessionCode,
			},
		}); err != nil {
			log.WithError(err).Warn("queue publish failed")
		}

		c.JSON(http.StatusCreated, res)
	})

	student.GET("/attendance/status", func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		status, err := client.CheckStatus(c.Request.Context(), claims.Subject)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, status)
	})

	authGroup.GET("/records", func(c *gin.Context) {
		date := c.Query("date")
		code := c.Query("code")

		var (
			recs []ledger.Record
			err  error
		)
		switch {
		case code != "":
			recs, err = records.FilterBySession(c.Request.Context(), date, code)
		case date != "":
			recs, err = records.FilterByDate(c.Request.Context(), date)
		default:
			recs, err = records.All(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if recs == nil {
			recs = []ledger.Record{}
		}
		c.JSON(http.StatusOK, gin.H{"records": recs})
	})

	authGroup.GET("/records/dates", func(c *gin.Context) {
		dates, err := records.UniqueDates(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if dates == nil {
			dates = []string{}
		}
		c.JSON(http.StatusOK, gin.H{"dates": dates})
	})

	lecturer.GET("/records/export", func(c *gin.Context) {
		date := c.Query("date")
		if date == "" {
			date = time.Now().Format(session.DateLayout)
		}
		recs, err := records.FilterByDate(c.Request.Context(), date)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		doc, err := export.CSV(recs)
		if err != nil {
			if errors.Is(err, export.ErrNoRecords) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+export.Filename(date)+`"`)
		c.Data(http.StatusOK, "text/csv", doc)
	})

	lecturer.DELETE("/records", func(c *gin.Context) {
		if err := records.Clear(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		log.Warn("all attendance records cleared")
		c.Status(http.StatusNoContent)
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.HTTPPort).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server forced shutdown")
	}

	log.Info("server exited")
	return nil
}

// submitFailure maps the submission error taxonomy to a status code and a
// metrics outcome label.
func submitFailure(err error) (int, string) {
	switch {
	case errors.Is(err, presence.ErrNetworkRequired):
		return http.StatusPreconditionFailed, metrics.OutcomeNetworkRequired
	case errors.Is(err, presence.ErrNoActiveSession):
		return http.StatusNotFound, metrics.OutcomeNoSession
	case errors.Is(err, presence.ErrInvalidCode):
		return http.StatusBadRequest, metrics.OutcomeInvalidCode
	case errors.Is(err, presence.ErrAlreadyMarked):
		return http.StatusConflict, metrics.OutcomeDuplicate
	default:
		return http.StatusInternalServerError, metrics.OutcomeError
	}
}

// CORS middleware for browser requests. Auth rides in the Authorization
// header, never in cookies, so credentialed CORS stays off and any origin
// may call.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
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
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
