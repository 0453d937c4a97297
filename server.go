package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/savefood/backoffice_core/config"
	"github.com/savefood/backoffice_core/draft"
	"github.com/savefood/backoffice_core/models"
	"github.com/savefood/backoffice_core/storage"
	"github.com/savefood/backoffice_core/utils"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

type saveDraftRequest struct {
	Payload json.RawMessage `json:"payload" binding:"required"`
}

type draftResponse struct {
	StorageKey string          `json:"storage_key"`
	Payload    json.RawMessage `json:"payload"`
	SavedAt    time.Time       `json:"saved_at"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Graceful drain on SIGTERM.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Drafts live behind a swappable store: the process boots on the memory
	// store and switches to the shared backend once connected.
	store := storage.NewSwapStore(storage.NewMemoryStore())
	svc := draft.NewService(store, draft.DefaultConfig())

	// Start the HTTP server ASAP; until the backend is ready we serve from
	// the in-memory store.
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: newRouter(svc, logger),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect the shared backend after the port is open, then swap it in.
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DRAFT_BACKEND"))) {
	case "mysql":
		config.ConnectDatabaseWithRetry()
		db := config.GetDB()
		if err := models.MigrateDraftTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Panic(err.Error())
		}
		store.Swap(storage.NewGormStore(db))
	case "memory":
		// keep the in-process store; useful for local development
	default:
		config.ConnectRedisWithRetry()
		store.Swap(storage.NewRedisStore(config.GetRedisDB()))
	}

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Panic(err.Error())
		}
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			config.LogError(logger, "main", "main", "shutdown", nil, err)
		}
	}
}

func newRouter(svc *draft.Service, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.PUT("/v1/drafts/:key", func(c *gin.Context) {
		var req saveDraftRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var validationErrors validator.ValidationErrors
			if errors.As(err, &validationErrors) {
				c.JSON(http.StatusBadRequest, gin.H{"message": "validation failed", "fields": utils.ProcessValidationErrors(err)})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		svc.SaveDraft(c.Request.Context(), c.Param("key"), req.Payload)
		c.Status(http.StatusNoContent)
	})

	r.GET("/v1/drafts/:key", func(c *gin.Context) {
		raw, savedAt, ok := svc.GetDraftRaw(c.Request.Context(), c.Param("key"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"message": draft.NoDraft})
			return
		}
		c.JSON(http.StatusOK, draftResponse{
			StorageKey: c.Param("key"),
			Payload:    raw,
			SavedAt:    savedAt,
		})
	})

	r.GET("/v1/drafts/:key/age", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"age": svc.DescribeDraftAge(c.Request.Context(), c.Param("key"))})
	})

	r.DELETE("/v1/drafts/:key", func(c *gin.Context) {
		svc.ClearDraft(c.Request.Context(), c.Param("key"))
		c.Status(http.StatusNoContent)
	})

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	})

	return r
}

func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		for _, ginErr := range c.Errors {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{
				"module":        "server",
				"path":          c.Request.URL.Path,
				"status":        c.Writer.Status(),
				"correlationId": cid,
			}).Error(ginErr.Error())
		}
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
