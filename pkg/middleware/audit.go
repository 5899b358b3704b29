package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionCreate   AuditAction = "create"
	AuditActionUpdate   AuditAction = "update"
	AuditActionDelete   AuditAction = "delete"
	AuditActionRequest  AuditAction = "request_link"
	AuditActionProcess  AuditAction = "process_link"
	AuditActionAssign   AuditAction = "assign_location"
	AuditActionPay      AuditAction = "initiate_payment"
	AuditActionReview   AuditAction = "review_transaction"
	AuditActionCallback AuditAction = "payment_callback"
)

// Context keys for audit data
const (
	ContextKeyAuditResourceType = "audit_resource_type"
	ContextKeyAuditResourceID   = "audit_resource_id"
	ContextKeyAuditMetadata     = "audit_metadata"
	contextKeyAuditSkip         = "audit_skip"
)

// AuditEntry represents a single audit log entry
type AuditEntry struct {
	ID           string                 `json:"id"`
	ProfileID    *string                `json:"profile_id,omitempty"`
	UserEmail    string                 `json:"user_email,omitempty"`
	UserRole     string                 `json:"user_role,omitempty"`
	Action       AuditAction            `json:"action"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   *string                `json:"resource_id,omitempty"`
	StatusCode   int                    `json:"status_code"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	UserAgent    string                 `json:"user_agent,omitempty"`
	RequestID    string                 `json:"request_id,omitempty"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// AuditSink persists a batch of audit entries
type AuditSink interface {
	Write(ctx context.Context, entries []*AuditEntry) error
}

// AuditConfig holds configuration for the audit middleware
type AuditConfig struct {
	Sink          AuditSink
	BufferSize    int
	FlushInterval time.Duration
	BatchSize     int
	// SkipPaths is a list of path prefixes to skip auditing
	SkipPaths []string
	// SkipMethods defaults to read-only methods
	SkipMethods []string
	// CaptureRequestBody stores the masked JSON request body as the entry payload
	CaptureRequestBody bool
	MaxBodySize        int
	SensitiveFields    []string
}

// DefaultAuditConfig returns default configuration
func DefaultAuditConfig(sink AuditSink) *AuditConfig {
	return &AuditConfig{
		Sink:               sink,
		BufferSize:         1000,
		FlushInterval:      5 * time.Second,
		BatchSize:          100,
		SkipPaths:          []string{"/health", "/ready", "/metrics"},
		SkipMethods:        []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		CaptureRequestBody: true,
		MaxBodySize:        10 * 1024,
		SensitiveFields:    []string{"password", "token", "secret", "api_key", "x_signature"},
	}
}

// AuditLogger buffers entries and flushes them to the sink from one background worker
type AuditLogger struct {
	config    *AuditConfig
	buffer    chan *AuditEntry
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewAuditLogger creates a new audit logger and starts its worker
func NewAuditLogger(config *AuditConfig) *AuditLogger {
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = 10 * 1024
	}

	al := &AuditLogger{
		config: config,
		buffer: make(chan *AuditEntry, config.BufferSize),
	}

	al.wg.Add(1)
	go al.worker()

	return al
}

// Log adds an audit entry to the buffer without blocking; entries are dropped when full
func (al *AuditLogger) Log(entry *AuditEntry) {
	select {
	case al.buffer <- entry:
	default:
	}
}

// Close flushes pending entries and stops the worker
func (al *AuditLogger) Close() error {
	al.closeOnce.Do(func() {
		close(al.buffer)
		al.wg.Wait()
	})
	return nil
}

func (al *AuditLogger) worker() {
	defer al.wg.Done()

	ticker := time.NewTicker(al.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]*AuditEntry, 0, al.config.BatchSize)

	for {
		select {
		case entry, ok := <-al.buffer:
			if !ok {
				al.flush(batch)
				return
			}
			batch = append(batch, entry)
			if len(batch) >= al.config.BatchSize {
				al.flush(batch)
				batch = make([]*AuditEntry, 0, al.config.BatchSize)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				al.flush(batch)
				batch = make([]*AuditEntry, 0, al.config.BatchSize)
			}
		}
	}
}

func (al *AuditLogger) flush(entries []*AuditEntry) {
	if len(entries) == 0 || al.config.Sink == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// audit failures never block request handling
	_ = al.config.Sink.Write(ctx, entries)
}

// PostgresAuditSink writes entries to the audit_logs table in one pgx batch
type PostgresAuditSink struct {
	pool *pgxpool.Pool
}

// NewPostgresAuditSink creates a sink backed by a pgx pool
func NewPostgresAuditSink(pool *pgxpool.Pool) *PostgresAuditSink {
	return &PostgresAuditSink{pool: pool}
}

const insertAuditLogQuery = `
	INSERT INTO audit_logs (
		id, profile_id, user_email, user_role, action, resource_type, resource_id,
		status_code, ip_address, user_agent, request_id, payload, metadata, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
`

// Write implements AuditSink
func (s *PostgresAuditSink) Write(ctx context.Context, entries []*AuditEntry) error {
	batch := &pgx.Batch{}
	for _, e := range entries {
		payload, _ := json.Marshal(e.Payload)
		metadata, _ := json.Marshal(e.Metadata)
		if string(metadata) == "null" {
			metadata = []byte("{}")
		}
		if string(payload) == "null" {
			payload = nil
		}
		batch.Queue(insertAuditLogQuery,
			e.ID, e.ProfileID, e.UserEmail, e.UserRole, string(e.Action), e.ResourceType, e.ResourceID,
			e.StatusCode, e.IPAddress, e.UserAgent, e.RequestID, payload, metadata, e.CreatedAt,
		)
	}
	return s.pool.SendBatch(ctx, batch).Close()
}

// MemoryAuditSink keeps entries in memory, used when no database is configured and in tests
type MemoryAuditSink struct {
	mu      sync.Mutex
	entries []*AuditEntry
}

// NewMemoryAuditSink creates an empty in-memory sink
func NewMemoryAuditSink() *MemoryAuditSink {
	return &MemoryAuditSink{}
}

// Write implements AuditSink
func (s *MemoryAuditSink) Write(_ context.Context, entries []*AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	return nil
}

// Entries returns a copy of the stored entries
func (s *MemoryAuditSink) Entries() []*AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*AuditEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// AuditMiddleware records mutating requests once the handler has finished
func AuditMiddleware(logger *AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		config := logger.config

		for _, path := range config.SkipPaths {
			if strings.HasPrefix(c.Request.URL.Path, path) {
				c.Next()
				return
			}
		}
		for _, method := range config.SkipMethods {
			if c.Request.Method == method {
				c.Next()
				return
			}
		}

		var payload map[string]interface{}
		if config.CaptureRequestBody && c.Request.Body != nil &&
			strings.HasPrefix(c.ContentType(), "application/json") {
			bodyBytes, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(config.MaxBodySize)))
			if err == nil && len(bodyBytes) > 0 {
				c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
				if json.Unmarshal(bodyBytes, &payload) == nil {
					payload = maskSensitiveFields(payload, config.SensitiveFields)
				}
			}
		}

		startTime := time.Now()

		c.Next()

		if skip, exists := c.Get(contextKeyAuditSkip); exists {
			if b, ok := skip.(bool); ok && b {
				return
			}
		}

		entry := &AuditEntry{
			ID:         uuid.New().String(),
			Action:     actionForPath(c.Request.Method, c.Request.URL.Path),
			StatusCode: c.Writer.Status(),
			Payload:    payload,
			CreatedAt:  startTime,
		}

		if profileID, ok := GetProfileID(c); ok && profileID != "" {
			entry.ProfileID = &profileID
		}
		entry.UserEmail, _ = GetEmail(c)
		entry.UserRole, _ = GetRole(c)

		resourceType, resourceID := resourceFromPath(c.Request.URL.Path)
		entry.ResourceType = resourceType
		if resourceID != "" {
			entry.ResourceID = &resourceID
		}
		if rt, ok := c.Get(ContextKeyAuditResourceType); ok {
			if s, ok := rt.(string); ok {
				entry.ResourceType = s
			}
		}
		if rid, ok := c.Get(ContextKeyAuditResourceID); ok {
			if s, ok := rid.(string); ok && s != "" {
				entry.ResourceID = &s
			}
		}
		if meta, ok := c.Get(ContextKeyAuditMetadata); ok {
			if m, ok := meta.(map[string]interface{}); ok {
				entry.Metadata = m
			}
		}

		entry.IPAddress = getClientIP(c)
		entry.UserAgent = c.GetHeader("User-Agent")
		entry.RequestID = GetRequestID(c)

		logger.Log(entry)
	}
}

// actionForPath maps a route to an audit action
func actionForPath(method, path string) AuditAction {
	p := strings.ToLower(path)

	switch {
	case strings.HasSuffix(p, "/payments/callback"), strings.Contains(p, "/payments/webhook"):
		return AuditActionCallback
	case strings.HasSuffix(p, "/process"):
		return AuditActionProcess
	case strings.HasSuffix(p, "/review"):
		return AuditActionReview
	case strings.Contains(p, "/tenants/") && strings.HasSuffix(p, "/links"):
		return AuditActionRequest
	case strings.Contains(p, "/tenants/") && strings.HasSuffix(p, "/locations"):
		return AuditActionAssign
	case strings.Contains(p, "/payments"):
		return AuditActionPay
	}

	switch method {
	case http.MethodPost:
		return AuditActionCreate
	case http.MethodPut, http.MethodPatch:
		return AuditActionUpdate
	case http.MethodDelete:
		return AuditActionDelete
	default:
		return AuditActionUpdate
	}
}

// resourceFromPath extracts resource type and id: /api/v1/links/42/process -> ("link", "42")
func resourceFromPath(path string) (resourceType string, resourceID string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")

	start := -1
	for i, part := range parts {
		if part == "api" || part == "admin" || part == "public" || isVersionSegment(part) {
			continue
		}
		start = i
		break
	}
	if start < 0 {
		return "unknown", ""
	}

	resourceType = strings.TrimSuffix(parts[start], "s")
	if start+1 < len(parts) && isValidID(parts[start+1]) {
		resourceID = parts[start+1]
	}
	return resourceType, resourceID
}

func isVersionSegment(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, c := range s[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// isValidID reports whether s is a UUID or a positive integer
func isValidID(s string) bool {
	if _, err := uuid.Parse(s); err == nil {
		return true
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

func getClientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := c.GetHeader("X-Real-IP"); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return ip
}

func maskSensitiveFields(data map[string]interface{}, sensitiveFields []string) map[string]interface{} {
	if data == nil {
		return nil
	}

	result := make(map[string]interface{}, len(data))
	for k, v := range data {
		lowKey := strings.ToLower(k)
		masked := false
		for _, sf := range sensitiveFields {
			if strings.Contains(lowKey, strings.ToLower(sf)) {
				result[k] = "[REDACTED]"
				masked = true
				break
			}
		}
		if masked {
			continue
		}
		if nested, ok := v.(map[string]interface{}); ok {
			result[k] = maskSensitiveFields(nested, sensitiveFields)
		} else {
			result[k] = v
		}
	}
	return result
}

// SetAuditResource overrides the resource type and id derived from the path
func SetAuditResource(c *gin.Context, resourceType, resourceID string) {
	c.Set(ContextKeyAuditResourceType, resourceType)
	c.Set(ContextKeyAuditResourceID, resourceID)
}

// SetAuditMetadata sets additional metadata for audit logging
func SetAuditMetadata(c *gin.Context, metadata map[string]interface{}) {
	c.Set(ContextKeyAuditMetadata, metadata)
}

// SkipAudit marks the current request to skip audit logging
func SkipAudit(c *gin.Context) {
	c.Set(contextKeyAuditSkip, true)
}
