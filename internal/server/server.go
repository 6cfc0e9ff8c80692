package server

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rezonia/invoice-processor/internal/logging"
	"github.com/rezonia/invoice-processor/internal/model"
	"github.com/rezonia/invoice-processor/internal/objectstore"
	"github.com/rezonia/invoice-processor/internal/ocr"
	"github.com/rezonia/invoice-processor/internal/queue"
	"github.com/rezonia/invoice-processor/internal/review"
	"github.com/rezonia/invoice-processor/internal/storage"
)

// maxUploadSize caps the multipart body this handler will accept before
// even parsing it (oversized uploads are rejected synchronously,
// not queued and failed later).
const maxUploadSize = 25 << 20 // 25MiB

// Config holds server configuration.
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// Server represents the HTTP API server: receipt upload and the review
// queue surface. It holds no pipeline itself; uploads are
// enqueued for a worker pool to process, never run inline on the
// request goroutine.
type Server struct {
	config      *Config
	router      *gin.Engine
	receipts    *storage.ReceiptRepository
	reviewQueue *review.Queue
	objects     *objectstore.Store
	tasks       *queue.Queue
}

// NewServer creates a new API server wired to its four collaborators.
func NewServer(config *Config, receipts *storage.ReceiptRepository, reviewQueue *review.Queue, objects *objectstore.Store, tasks *queue.Queue) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.GinMiddleware())
	if config.Debug {
		router.Use(gin.Logger())
	}

	s := &Server{
		config:      config,
		router:      router,
		receipts:    receipts,
		reviewQueue: reviewQueue,
		objects:     objects,
		tasks:       tasks,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	s.router.POST("/receipts/upload", s.handleUpload)
	s.router.GET("/receipts/:id/file", s.handleReceiptFile)

	reviewGroup := s.router.Group("/review")
	{
		reviewGroup.GET("/tasks", s.handleListReviewTasks)
		reviewGroup.GET("/tasks/:id", s.handleGetReviewTask)
		reviewGroup.PATCH("/tasks/:id", s.handleActOnReviewTask)
		reviewGroup.POST("/batch", s.handleBatchReviewAction)
		reviewGroup.GET("/metrics", s.handleReviewMetrics)
	}
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return srv.ListenAndServe()
}

// Handler returns the http.Handler for use with custom servers (tests
// drive this directly with httptest, bypassing Run's real listener).
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	entity := model.Entity(c.PostForm("entity"))
	if !entity.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entity must be one of: corp, soleprop"})
		return
	}

	source := model.Source(c.DefaultPostForm("source", string(model.SourcePWA)))
	if !source.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing multipart field \"file\""})
		return
	}
	if fileHeader.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds the maximum upload size"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not open uploaded file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded file"})
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !supportedUploadType(contentType, data) {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported file type, expected an image or PDF"})
		return
	}

	receiptID := uuid.New()
	ext := strings.TrimPrefix(filepath.Ext(fileHeader.Filename), ".")
	if ext == "" {
		ext = extensionForContentType(contentType)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	objectKey, err := s.objects.PutOriginal(ctx, entity, receiptID.String(), ext, data, contentType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store uploaded file"})
		return
	}

	task := queue.Task{
		ReceiptID: receiptID,
		Entity:    entity,
		Source:    source,
		ObjectKey: objectKey,
		Filename:  fileHeader.Filename,
	}
	taskID, err := s.tasks.Enqueue(ctx, task)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue receipt for processing"})
		return
	}

	c.JSON(http.StatusAccepted, UploadResponse{
		ReceiptID: receiptID.String(),
		Status:    "pending",
		TaskID:    taskID,
	})
}

func (s *Server) handleReceiptFile(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid receipt id"})
		return
	}

	entity := model.Entity(c.Query("entity"))
	if !entity.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entity query parameter must be one of: corp, soleprop"})
		return
	}

	fileType := c.DefaultQuery("file_type", objectstore.FileOriginal)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	receipt, err := s.receipts.GetReceipt(ctx, entity, id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "receipt not found"})
		return
	}

	switch fileType {
	case objectstore.FileOriginal:
		s.streamObject(c, ctx, receipt.OriginalPath)
	case "normalized":
		s.streamObject(c, ctx, objectstore.SiblingKey(receipt.OriginalPath, objectstore.FileNormalized))
	case "thumbnail":
		s.streamObject(c, ctx, objectstore.SiblingKey(receipt.OriginalPath, objectstore.FileThumbnail))
	case "cropped":
		s.serveCroppedFile(c, ctx, entity, id, receipt)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_type must be one of: original, normalized, thumbnail, cropped"})
	}
}

func (s *Server) streamObject(c *gin.Context, ctx context.Context, key string) {
	reader, contentType, err := s.objects.Get(ctx, key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read stored file"})
		return
	}
	c.Data(http.StatusOK, contentType, data)
}

// serveCroppedFile computes a receipt's cropped image on demand from
// its lines' stored bounding boxes and caches the result next to the
// original, so a repeat request is a plain object-store fetch.
func (s *Server) serveCroppedFile(c *gin.Context, ctx context.Context, entity model.Entity, id uuid.UUID, receipt *model.Receipt) {
	croppedKey := objectstore.SiblingKey(receipt.OriginalPath, objectstore.FileCropped)
	if reader, contentType, err := s.objects.Get(ctx, croppedKey); err == nil {
		defer reader.Close()
		data, err := io.ReadAll(reader)
		if err == nil {
			c.Data(http.StatusOK, contentType, data)
			return
		}
	}

	lines, err := s.receipts.LinesForReceipt(ctx, entity, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load receipt lines"})
		return
	}

	boxes := make([]model.BoundingBox, 0, len(lines))
	for _, l := range lines {
		if l.BoundingBox != nil {
			boxes = append(boxes, *l.BoundingBox)
		}
	}
	left, top, width, height := ocr.CroppedRegion(boxes)

	reader, _, err := s.objects.Get(ctx, receipt.OriginalPath)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "original file not found"})
		return
	}
	defer reader.Close()

	original, err := io.ReadAll(reader)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read original file"})
		return
	}

	cropped, err := ocr.Crop(original, left, top, width, height)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "failed to crop image"})
		return
	}

	if _, err := s.objects.PutSibling(ctx, receipt.OriginalPath, objectstore.FileCropped, cropped, "image/jpeg"); err != nil {
		// The cropped image is still usable for this request even if the
		// cache write failed; the next request just recomputes it.
		log.Warn().Str("stage", "server").Str("receipt_id", id.String()).
			Err(err).Msg("failed to cache cropped image")
	}

	c.Data(http.StatusOK, "image/jpeg", cropped)
}

func (s *Server) handleListReviewTasks(c *gin.Context) {
	filters := review.Filters{
		Entity:   model.Entity(c.Query("entity")),
		Status:   model.LineReviewStatus(c.Query("status")),
		Vendor:   c.Query("vendor"),
		Assignee: c.Query("assignee"),
	}
	if raw := c.Query("min_confidence"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			filters.MinConfidence = &v
		}
	}
	if raw := c.Query("max_confidence"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			filters.MaxConfidence = &v
		}
	}
	if raw := c.Query("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.From = &t
		}
	}
	if raw := c.Query("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.To = &t
		}
	}

	pagination := review.Pagination{Limit: 50, Offset: 0}
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			pagination.Limit = v
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			pagination.Offset = v
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	page, err := s.reviewQueue.List(ctx, filters, pagination)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list review tasks"})
		return
	}

	items := make([]ReviewableResponse, 0, len(page.Items))
	for _, r := range page.Items {
		items = append(items, reviewableResponse(r))
	}
	c.JSON(http.StatusOK, ReviewListResponse{Items: items, Total: page.Total})
}

func (s *Server) handleGetReviewTask(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	reviewable, err := s.reviewQueue.Get(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "review task not found"})
		return
	}
	c.JSON(http.StatusOK, reviewableResponse(reviewable))
}

func (s *Server) handleActOnReviewTask(c *gin.Context) {
	var req ReviewActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.PerformedBy == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "performed_by is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	reviewable, err := s.reviewQueue.Act(ctx, c.Param("id"), model.ReviewAction(req.Action), req.Payload, req.Reason, req.PerformedBy)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, reviewableResponse(reviewable))
}

func (s *Server) handleBatchReviewAction(c *gin.Context) {
	var req ReviewBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids must not be empty"})
		return
	}
	if req.PerformedBy == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "performed_by is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	result := s.reviewQueue.BatchAct(ctx, req.IDs, model.ReviewAction(req.Action), req.Payload, req.Reason, req.PerformedBy)
	c.JSON(http.StatusOK, ReviewBatchResponse{Success: result.Success, Failed: result.Failed})
}

func (s *Server) handleReviewMetrics(c *gin.Context) {
	entity := model.Entity(c.Query("entity"))
	if !entity.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entity query parameter must be one of: corp, soleprop"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	metrics, err := s.reviewQueue.Metrics(ctx, entity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute review metrics"})
		return
	}
	c.JSON(http.StatusOK, ReviewMetricsResponse{
		PendingCount:    metrics.PendingCount,
		ApprovedToday:   metrics.ApprovedToday,
		RejectedToday:   metrics.RejectedToday,
		ConfidenceBands: metrics.ConfidenceBands,
		CacheHitRate:    metrics.CacheHitRate,
	})
}

// supportedUploadType accepts images and PDFs by declared content type,
// falling back to magic-byte sniffing when the client didn't send one
// (or sent the generic application/octet-stream).
func supportedUploadType(contentType string, data []byte) bool {
	if strings.HasPrefix(contentType, "image/") || contentType == "application/pdf" {
		return true
	}
	if contentType != "" && contentType != "application/octet-stream" {
		return false
	}
	sniffed := detectMimeType(data)
	return strings.HasPrefix(sniffed, "image/") || sniffed == "application/pdf"
}

func extensionForContentType(contentType string) string {
	switch contentType {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/tiff":
		return "tiff"
	case "image/heic", "image/heif":
		return "heic"
	case "application/pdf":
		return "pdf"
	default:
		return "bin"
	}
}

func detectMimeType(data []byte) string {
	if len(data) < 4 {
		return "application/octet-stream"
	}
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	if (data[0] == 0x49 && data[1] == 0x49) || (data[0] == 0x4D && data[1] == 0x4D) {
		return "image/tiff"
	}
	if data[0] == '%' && data[1] == 'P' && data[2] == 'D' && data[3] == 'F' {
		return "application/pdf"
	}
	return "application/octet-stream"
}
