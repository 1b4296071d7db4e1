package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Actions recorded in the audit trail.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Logger writes an append-only audit trail of state-changing operations
// as structured log records. Each record is a single "audit" message with
// the entry under the "audit" group, so a log pipeline can route it apart
// from request logs.
type Logger struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewLogger creates a new audit logger.
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Logger{logger: logger, now: time.Now}
}

// Entry represents a single audit log entry.
type Entry struct {
	ID           uuid.UUID
	Action       string // "create", "update", "delete"
	ResourceType string // "inspection", "photo"
	ResourceID   uuid.UUID
	OldValues    map[string]any // state before change
	NewValues    map[string]any // state after change
	IPAddress    string
	UserAgent    string
	RequestID    string // correlates with request logs
	CreatedAt    time.Time
}

// LogAction records an audit entry.
func (l *Logger) LogAction(ctx context.Context, entry Entry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now().UTC()
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	attrs := []any{
		slog.String("id", entry.ID.String()),
		slog.String("action", entry.Action),
		slog.String("resource_type", entry.ResourceType),
		slog.String("resource_id", entry.ResourceID.String()),
		slog.Time("created_at", entry.CreatedAt),
	}
	if entry.OldValues != nil {
		attrs = append(attrs, slog.Any("old_values", entry.OldValues))
	}
	if entry.NewValues != nil {
		attrs = append(attrs, slog.Any("new_values", entry.NewValues))
	}
	if entry.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", entry.IPAddress))
	}
	if entry.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", entry.UserAgent))
	}
	if entry.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", entry.RequestID))
	}

	l.logger.LogAttrs(ctx, slog.LevelInfo, "audit", slog.Group("audit", attrs...))
}

// LogCreate records a resource creation.
func (l *Logger) LogCreate(c echo.Context, resourceType string, resourceID uuid.UUID, newValues map[string]any) {
	l.log(c, Entry{
		Action:       ActionCreate,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		NewValues:    newValues,
	})
}

// LogUpdate records a resource update with its before and after values.
func (l *Logger) LogUpdate(c echo.Context, resourceType string, resourceID uuid.UUID, oldValues, newValues map[string]any) {
	l.log(c, Entry{
		Action:       ActionUpdate,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		OldValues:    oldValues,
		NewValues:    newValues,
	})
}

// LogDelete records a resource deletion.
func (l *Logger) LogDelete(c echo.Context, resourceType string, resourceID uuid.UUID, oldValues map[string]any) {
	l.log(c, Entry{
		Action:       ActionDelete,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		OldValues:    oldValues,
	})
}

// log fills the request metadata from the echo context.
func (l *Logger) log(c echo.Context, entry Entry) {
	ctx := context.Background()
	if c != nil {
		ctx = c.Request().Context()
		entry.IPAddress = c.RealIP()
		entry.UserAgent = c.Request().UserAgent()
		if rid, ok := c.Get("request_id").(string); ok {
			entry.RequestID = rid
		}
	}
	l.LogAction(ctx, entry)
}
