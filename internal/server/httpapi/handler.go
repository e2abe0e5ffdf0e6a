package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/mediavault/internal/common"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
	"github.com/dmitrijs2005/mediavault/internal/server/uploads"
)

type errorResponse struct {
	Error string `json:"error"`
}

type transactionResponse struct {
	uploads.Transaction
	Label string `json:"label"`
}

func (s *HTTPServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// createUpload accepts multipart "files[]" (or "files") and runs the batch to
// completion. 201 on success, 422 when retries are exhausted.
func (s *HTTPServer) createUpload(c *gin.Context) {
	ctx := c.Request.Context()
	userID := userIDFrom(c)

	category, err := models.ParseCategory(c.Query("category"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	maxAttempts := 0
	if v := c.Query("max_attempts"); v != "" {
		if maxAttempts, err = strconv.Atoi(v); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "max_attempts must be an integer"})
			return
		}
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: "upload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, errorResponse{Error: "multipart form expected"})
		return
	}

	headers := form.File["files[]"]
	if len(headers) == 0 {
		headers = form.File["files"]
	}
	files, err := readFiles(headers)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	res, err := s.uploads.Submit(ctx, userID, category, files, maxAttempts)
	switch {
	case errors.Is(err, common.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	case err != nil:
		s.logger.Warn(ctx, "upload interrupted", "user_id", userID, "tx_id", res.TransactionID, "error", err)
		c.JSON(http.StatusServiceUnavailable, res)
		return
	}

	if !res.Success {
		c.JSON(http.StatusUnprocessableEntity, res)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func readFiles(headers []*multipart.FileHeader) ([]uploads.File, error) {
	files := make([]uploads.File, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", h.Filename, err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", h.Filename, err)
		}
		files = append(files, uploads.File{Name: h.Filename, Data: data})
	}
	return files, nil
}

// getUpload reports a transaction owned by the caller. Other users'
// transactions are indistinguishable from unknown ones.
func (s *HTTPServer) getUpload(c *gin.Context) {
	tx, err := s.uploads.GetStatus(c.Param("id"))
	if errors.Is(err, common.ErrNotFound) || (err == nil && tx.UserID != userIDFrom(c)) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "transaction not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	c.JSON(http.StatusOK, transactionResponse{Transaction: tx, Label: tx.Label()})
}

func (s *HTTPServer) listImages(c *gin.Context) {
	ctx := c.Request.Context()

	var category models.Category
	if v := c.Query("category"); v != "" {
		parsed, err := models.ParseCategory(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		category = parsed
	}

	items, err := s.images.List(ctx, userIDFrom(c), category)
	if err != nil {
		s.logger.Error(ctx, "list images failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": items})
}

func (s *HTTPServer) imageStats(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := s.images.Stats(ctx, userIDFrom(c))
	if err != nil {
		s.logger.Error(ctx, "image stats failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
