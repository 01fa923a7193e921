package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/config"
	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/models"
	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/models/reports"
	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/ocr"
	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/utils"
	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/workflow"
)

const defaultPort = "8080"

const maxReceiptSizeBytes int64 = 10 * 1024 * 1024

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
	return client
}

// buildPipeline assembles the reconciliation pipeline against the live DB,
// Redis and Pub/Sub singletons. Built per request; all state lives in the
// singletons themselves.
func buildPipeline() *workflow.Pipeline {
	deps := workflow.PipelineDeps{
		Records:   models.Store{},
		Providers: models.Store{},
		Orders:    models.Store{},
		Owners:    models.Store{},
		Notifier:  workflow.PubSubNotifier{},
		Guard:     workflow.NewDuplicateGuard(config.GetRedisDB(), 24*time.Hour),
		Logger:    config.GetLogger(),
	}
	if recognizer, err := ocr.NewClient(); err == nil {
		deps.Recognizer = recognizer
	}
	return workflow.NewPipeline(deps)
}

type uploadReceiptForm struct {
	OwnerId       string `form:"owner_id" binding:"required"`
	SenderPhone   string `form:"sender_phone"`
	ReceiptNumber string `form:"receipt_number"`
	Currency      string `form:"currency"`
	Amount        string `form:"amount"`
}

// uploadReceiptHandler ingests a receipt document from the messaging channel:
// store the file, create a Pending record, then reconcile synchronously.
func uploadReceiptHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var form uploadReceiptForm
		if err := c.ShouldBind(&form); err != nil {
			var validationErrors validator.ValidationErrors
			if errors.As(err, &validationErrors) {
				c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ownerId := strings.TrimSpace(form.OwnerId)
		if phone := strings.TrimSpace(form.SenderPhone); phone != "" {
			if err := utils.ValidatePhoneNumber(phone, utils.CountryCode); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sender_phone: " + err.Error()})
				return
			}
		}
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if fileHeader.Size > maxReceiptSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 10MB limit"})
			return
		}
		f, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file"})
			return
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxReceiptSizeBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file"})
			return
		}
		contentType := http.DetectContentType(data)

		ctx := utils.SetOwnerIdInContext(c.Request.Context(), ownerId)

		ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
		objectKey := path.Join(ownerId, "receipts", uuid.NewString()+ext)
		if err := utils.UploadReceiptToGCS(ctx, objectKey, bytes.NewReader(data)); err != nil {
			config.LogError(logger, "server.go", "uploadReceiptHandler", "Uploading receipt to GCS", objectKey, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		record := &models.PaymentRecord{
			ID:            uuid.NewString(),
			OwnerId:       ownerId,
			Status:        models.RecordStatusPending,
			FileUrl:       utils.GetCloudURL(objectKey),
			SenderPhone:   strings.TrimSpace(form.SenderPhone),
			ReceiptNumber: strings.TrimSpace(form.ReceiptNumber),
		}
		if currency := strings.TrimSpace(form.Currency); currency != "" {
			record.Currency = currency
		}
		if amountStr := strings.TrimSpace(form.Amount); amountStr != "" {
			amount, err := decimal.NewFromString(amountStr)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
				return
			}
			record.Amount = &amount
		}
		if err := models.CreatePaymentRecord(ctx, record); err != nil {
			config.LogError(logger, "server.go", "uploadReceiptHandler", "Creating payment record", record, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create record"})
			return
		}

		processed, err := buildPipeline().RunDocument(ctx, record.ID, data, contentType)
		if err != nil {
			// The record is stored; reconciliation can be retried via
			// POST /records/:id/process or the pubsub topic.
			config.LogError(logger, "server.go", "uploadReceiptHandler", "Reconciling record", record.ID, err)
			c.JSON(http.StatusAccepted, gin.H{"data": record, "warning": "stored but not reconciled: " + err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": processed})
	}
}

// processRecordHandler re-runs reconciliation for an existing record.
func processRecordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerId := strings.TrimSpace(c.Query("owner_id"))
		if ownerId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "owner_id is required"})
			return
		}
		ctx := utils.SetOwnerIdInContext(c.Request.Context(), ownerId)

		record, err := buildPipeline().Run(ctx, c.Param("id"))
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": record})
	}
}

func getRecordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerId := strings.TrimSpace(c.Query("owner_id"))
		if ownerId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "owner_id is required"})
			return
		}
		ctx := utils.SetOwnerIdInContext(c.Request.Context(), ownerId)

		record, err := models.GetPaymentRecord(ctx, c.Param("id"))
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		resp := gin.H{"data": record}
		// Optional time-limited download link for the stored receipt file.
		if strings.EqualFold(c.Query("signed_url"), "true") && record.FileUrl != "" {
			if objectKey := utils.ExtractObjectKeyFromURL(record.FileUrl); objectKey != "" {
				signedURL, err := utils.SignedReceiptURL(ctx, objectKey, 15*time.Minute)
				if err != nil {
					config.LogError(config.GetLogger(), "server.go", "getRecordHandler", "Signing receipt URL", objectKey, err)
				} else {
					resp["file_signed_url"] = signedURL
				}
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

// auditExportHandler streams the record's match attempt history as XLSX.
func auditExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerId := strings.TrimSpace(c.Query("owner_id"))
		if ownerId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "owner_id is required"})
			return
		}
		ctx := utils.SetOwnerIdInContext(c.Request.Context(), ownerId)
		reports.WriteAssignmentAuditExcel(ctx, c.Writer, ownerId, c.Param("id"))
	}
}

func reconcilePubSubHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg PubSubMessage
		logger := config.GetLogger()

		// Redis lock is a best-effort optimization: it narrows the window for
		// duplicate concurrent deliveries, while durable idempotency in MySQL
		// is the actual safety net.
		redisLock := config.GetRedisLock()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "server.go", "reconcilePubSubHandler", "io.ReadAll", nil, err)
			// Malformed request body: ack/drop to avoid infinite retries.
			c.Status(http.StatusNoContent)
			return
		}

		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(logger, "server.go", "reconcilePubSubHandler", "Unmarshal body", body, err)
			c.Status(http.StatusNoContent)
			return
		}

		var m config.ReconcileMessage
		if err := json.Unmarshal(msg.Message.Data, &m); err != nil {
			config.LogError(logger, "server.go", "reconcilePubSubHandler", "Unmarshal pubsub message", msg.Message.Data, err)
			c.Status(http.StatusNoContent)
			return
		}

		// Basic validation to avoid retry loops on poisoned messages.
		if m.OwnerId == "" || m.RecordId == "" {
			config.LogError(logger, "server.go", "reconcilePubSubHandler", "Invalid pubsub message (missing required fields)", m, fmt.Errorf("owner_id/record_id required"))
			c.Status(http.StatusNoContent)
			return
		}
		if m.Action != "reprocess" && m.Action != "delivery_confirmed" {
			config.LogError(logger, "server.go", "reconcilePubSubHandler", "Unknown action", m, fmt.Errorf("unsupported action %q", m.Action))
			c.Status(http.StatusNoContent)
			return
		}

		// Correlation ID propagation: prefer payload correlation_id; fall back to Pub/Sub message ID.
		correlationID := m.CorrelationId
		if correlationID == "" {
			correlationID = msg.Message.ID
		}

		var lock *redislock.Lock
		if redisLock == nil {
			logger.WithFields(logrus.Fields{
				"field":      "reconcilePubSubHandler",
				"owner_id":   m.OwnerId,
				"record_id":  m.RecordId,
				"message_id": msg.Message.ID,
			}).Warn("redis lock not ready; proceeding without redis lock")
		} else {
			lock, err = redisLock.Obtain(c.Request.Context(), fmt.Sprintf("lock:%s", m.OwnerId), 30*time.Second, nil)
			if err != nil {
				logger.WithFields(logrus.Fields{
					"field":      "reconcilePubSubHandler",
					"owner_id":   m.OwnerId,
					"record_id":  m.RecordId,
					"message_id": msg.Message.ID,
				}).Warn("could not obtain redis lock; proceeding without redis lock: " + err.Error())
				lock = nil
			}
		}
		defer func() {
			if lock == nil {
				return
			}
			if releaseErr := lock.Release(c.Request.Context()); releaseErr != nil {
				logger.WithFields(logrus.Fields{
					"field":      "reconcilePubSubHandler",
					"owner_id":   m.OwnerId,
					"record_id":  m.RecordId,
					"message_id": msg.Message.ID,
				}).Warn("failed to release redis lock: " + releaseErr.Error())
			}
		}()

		db := config.GetDB()
		handlerName := "reconcile:" + m.Action
		skip, err := workflow.BeginIdempotency(db, m.OwnerId, handlerName, msg.Message.ID)
		if err != nil {
			// In-progress or infrastructure failure: non-2xx tells Pub/Sub to retry.
			config.LogError(logger, "server.go", "reconcilePubSubHandler", "BeginIdempotency", m, err)
			c.Status(http.StatusInternalServerError)
			return
		}
		if skip {
			c.Status(http.StatusNoContent)
			return
		}

		ctx := utils.SetOwnerIdInContext(c.Request.Context(), m.OwnerId)
		ctx = utils.SetCorrelationIdInContext(ctx, correlationID)

		var procErr error
		switch m.Action {
		case "reprocess":
			_, procErr = buildPipeline().Run(ctx, m.RecordId)
		case "delivery_confirmed":
			procErr = models.MarkRecordSent(ctx, m.OwnerId, m.RecordId)
		}
		if procErr != nil {
			_ = workflow.MarkIdempotencyFailed(db, m.OwnerId, handlerName, msg.Message.ID, procErr)
			if errors.Is(procErr, utils.ErrorRecordNotFound) {
				// The record is gone; retrying cannot help.
				config.LogError(logger, "server.go", "reconcilePubSubHandler", "Record missing; dropping message", m, procErr)
				c.Status(http.StatusNoContent)
				return
			}
			logger.WithFields(logrus.Fields{
				"field":          "reconcilePubSubHandler",
				"owner_id":       m.OwnerId,
				"record_id":      m.RecordId,
				"message_id":     msg.Message.ID,
				"correlation_id": correlationID,
			}).Error("pubsub processing failed: " + procErr.Error())
			// Non-2xx tells Pub/Sub to retry (and potentially route to DLQ).
			c.Status(http.StatusInternalServerError)
			return
		}

		if err := workflow.MarkIdempotencySucceeded(db, m.OwnerId, handlerName, msg.Message.ID); err != nil {
			config.LogError(logger, "server.go", "reconcilePubSubHandler", "MarkIdempotencySucceeded", m, err)
			c.Status(http.StatusInternalServerError)
			return
		}

		// Success: ack.
		c.Status(http.StatusNoContent)
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Shutdown coordination.
	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, we return 503 for app endpoints.
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
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))

	// Optional rate limiting (recommended for production).
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/records", uploadReceiptHandler())
	r.GET("/records/:id", getRecordHandler())
	r.POST("/records/:id/process", processRecordHandler())
	r.GET("/records/:id/audit.xlsx", auditExportHandler())
	r.POST("/pubsub", reconcilePubSubHandler())
	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	go ensureNotifyTopic(logger)

	// Now DB is ready; run migrations.
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// IMPORTANT: AutoMigrate can run DDL that blocks tables and causes 504/502 timeouts.
	// Allow disabling migrations on startup (run them as a separate job instead).
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	log.Println("Server started successfully on port " + port)

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// ensureNotifyTopic creates the assignment-notification topic when configured
// and missing. Best-effort: publishing still fails loudly if the topic is gone.
func ensureNotifyTopic(logger *logrus.Logger) {
	topic := strings.TrimSpace(os.Getenv("NOTIFY_TOPIC"))
	if topic == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client, err := config.GetClient(ctx)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "pubsub"}).Warn("notify topic check skipped: " + err.Error())
		return
	}
	if _, err := config.CreateTopicIfNotExists(client, topic); err != nil {
		logger.WithFields(logrus.Fields{"field": "pubsub"}).Warn("failed to ensure notify topic: " + err.Error())
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	// Get the IP address or user identifier from the request.
	key := c.ClientIP() // Assuming IP-based rate limiting

	// Check if the key exists in Redis.
	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the key doesn't exist, create it and set expiry.
	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	// If the key exists, get the current count.
	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the count exceeds the limit, return an error response.
	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
