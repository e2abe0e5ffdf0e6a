// Package httpapi exposes the upload coordinator and the image read side
// over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/mediavault/internal/logging"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
	"github.com/dmitrijs2005/mediavault/internal/server/uploads"
)

// Uploader is the part of the upload coordinator the API drives.
type Uploader interface {
	Submit(ctx context.Context, userID string, category models.Category, files []uploads.File, maxAttempts int) (uploads.Result, error)
	GetStatus(id string) (uploads.Transaction, error)
}

// ImageReader serves the cached read side.
type ImageReader interface {
	List(ctx context.Context, userID string, category models.Category) ([]models.RecordDescriptor, error)
	Stats(ctx context.Context, userID string) (models.UserStats, error)
}

type HTTPServer struct {
	address        string
	uploads        Uploader
	images         ImageReader
	logger         logging.Logger
	jwtSecret      []byte
	maxUploadBytes int64
	metrics        http.Handler
}

// NewHTTPServer builds the server. metrics may be nil, in which case
// /metrics is not served.
func NewHTTPServer(a string, l logging.Logger, up Uploader, im ImageReader, secretKey string, maxUploadBytes int64, metrics http.Handler) *HTTPServer {
	return &HTTPServer{
		address:        a,
		logger:         l.With("module", "http_server"),
		uploads:        up,
		images:         im,
		jwtSecret:      []byte(secretKey),
		maxUploadBytes: maxUploadBytes,
		metrics:        metrics,
	}
}

// Handler returns the routed gin engine.
func (s *HTTPServer) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.health)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}

	v1 := r.Group("/v1", s.authMiddleware())
	v1.POST("/uploads", s.createUpload)
	v1.GET("/uploads/:id", s.getUpload)
	v1.GET("/images", s.listImages)
	v1.GET("/images/stats", s.imageStats)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RequestIDHeader is echoed back, or generated when the caller sent none.
const RequestIDHeader = "X-Request-ID"

// requestLogger tags the request context with a request id so every log line
// written while serving it carries the id.
func (s *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logging.ContextWith(c.Request.Context(), "request_id", id))

		c.Next()
		s.logger.Debug(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
