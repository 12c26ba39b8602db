package model

import "time"

// Severity represents the severity level of a critical error
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// CriticalErrorType represents the category of a detected failure
type CriticalErrorType string

const (
	ErrorTypeDatabaseConnection CriticalErrorType = "database-connection-failure"
	ErrorTypeRedisConnection    CriticalErrorType = "redis-connection-failure"
	ErrorTypeAuthService        CriticalErrorType = "auth-service-failure"
	ErrorTypeWorkflowExecution  CriticalErrorType = "workflow-execution-failure"
	ErrorTypeSystemHealth       CriticalErrorType = "system-health-failure"
)

// LogLevel represents the level of an incoming log entry
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
)

// AtLeastError reports whether the level is error or above
func (l LogLevel) AtLeastError() bool {
	return l == LogLevelError || l == LogLevelFatal
}

// LogEntry is a raw structured log record fed into the detector
type LogEntry struct {
	Level         LogLevel               `json:"level"`
	Message       string                 `json:"message"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	UserID        string                 `json:"user_id,omitempty"`
	SessionID     string                 `json:"session_id,omitempty"`
	Stack         string                 `json:"stack,omitempty"`
	Meta          map[string]interface{} `json:"meta,omitempty"`
}

// CriticalError represents one detected incident
type CriticalError struct {
	ID              string                 `json:"id"`
	Timestamp       time.Time              `json:"timestamp"`
	FirstOccurrence time.Time              `json:"first_occurrence"`
	LastOccurrence  time.Time              `json:"last_occurrence"`
	Severity        Severity               `json:"severity"`
	Type            CriticalErrorType      `json:"type"`
	Message         string                 `json:"message"`
	Source          string                 `json:"source"`
	Environment     string                 `json:"environment"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	CorrelationID   string                 `json:"correlation_id,omitempty"`
	UserID          string                 `json:"user_id,omitempty"`
	SessionID       string                 `json:"session_id,omitempty"`
	StackTrace      string                 `json:"stack_trace,omitempty"`
	Resolved        bool                   `json:"resolved"`
	ResolvedBy      string                 `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time             `json:"resolved_at,omitempty"`
	OccurrenceCount int                    `json:"occurrence_count"`
	Escalated       bool                   `json:"escalated,omitempty"`
}
