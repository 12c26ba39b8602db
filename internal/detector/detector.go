package detector

import (
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/claudeflow/alerting/internal/model"
)

// Template describes how matches of one error type are reported
type Template struct {
	Severity model.Severity
	Title    string
}

type pattern struct {
	errType  model.CriticalErrorType
	re       *regexp.Regexp
	template Template
}

// Detector classifies raw log entries into typed critical errors using
// regular-expression patterns. Classification is pure: no state beyond the
// pattern registry is touched.
type Detector struct {
	logger      *zap.Logger
	source      string
	environment string

	mu       sync.RWMutex
	patterns []pattern
}

// New creates a detector with the default pattern set registered
func New(logger *zap.Logger, source, environment string) *Detector {
	d := &Detector{
		logger:      logger.Named("detector"),
		source:      source,
		environment: environment,
	}

	defaults := []struct {
		errType model.CriticalErrorType
		expr    string
		tmpl    Template
	}{
		{
			model.ErrorTypeDatabaseConnection,
			`(?i)database connection (failed|refused|lost|timed? ?out)`,
			Template{Severity: model.SeverityCritical, Title: "Database connection failure"},
		},
		{
			model.ErrorTypeRedisConnection,
			`(?i)redis (connection|client) (failed|refused|lost|error)`,
			Template{Severity: model.SeverityCritical, Title: "Redis connection failure"},
		},
		{
			model.ErrorTypeAuthService,
			`(?i)auth(entication)? service (unavailable|failed|error|down)`,
			Template{Severity: model.SeverityHigh, Title: "Auth service failure"},
		},
		{
			model.ErrorTypeWorkflowExecution,
			`(?i)workflow (execution )?(failed|aborted|crashed)`,
			Template{Severity: model.SeverityHigh, Title: "Workflow execution failure"},
		},
		{
			model.ErrorTypeSystemHealth,
			`(?i)system health (check )?(failed|degraded|critical)`,
			Template{Severity: model.SeverityMedium, Title: "System health failure"},
		},
	}

	for _, def := range defaults {
		// default expressions are compile-checked by tests
		if err := d.Register(def.errType, def.expr, def.tmpl); err != nil {
			d.logger.Error("Failed to register default pattern",
				zap.String("type", string(def.errType)),
				zap.Error(err))
		}
	}

	return d
}

// Register adds a pattern for an error type. Patterns are evaluated in
// registration order and the first match wins.
func (d *Detector) Register(errType model.CriticalErrorType, expr string, tmpl Template) error {
	re, err := regexp.Compile(expr)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.patterns = append(d.patterns, pattern{errType: errType, re: re, template: tmpl})
	return nil
}

// Template returns the registered template for an error type
func (d *Detector) Template(errType model.CriticalErrorType) (Template, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, p := range d.patterns {
		if p.errType == errType {
			return p.template, true
		}
	}
	return Template{}, false
}

// Detect classifies a log entry. It returns nil when the entry is below error
// level, has no message, or matches no registered pattern.
func (d *Detector) Detect(entry *model.LogEntry) *model.CriticalError {
	if entry == nil || entry.Message == "" || !entry.Level.AtLeastError() {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, p := range d.patterns {
		if !p.re.MatchString(entry.Message) {
			continue
		}

		ts := entry.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}

		return &model.CriticalError{
			ID:              uuid.New().String(),
			Timestamp:       ts,
			FirstOccurrence: ts,
			LastOccurrence:  ts,
			Severity:        p.template.Severity,
			Type:            p.errType,
			Message:         entry.Message,
			Source:          d.source,
			Environment:     d.environment,
			Metadata:        entry.Meta,
			CorrelationID:   entry.CorrelationID,
			UserID:          entry.UserID,
			SessionID:       entry.SessionID,
			StackTrace:      entry.Stack,
			OccurrenceCount: 1,
		}
	}

	return nil
}
