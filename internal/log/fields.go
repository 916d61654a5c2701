package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldUserID     = "user_id"
	FieldCategory   = "category"
	FieldPeriod     = "period"
	FieldIntent     = "intent"
	FieldAmount     = "amount"
	FieldAlertType  = "alert_type"
	FieldBudgetID   = "budget_id"
	FieldMessageID  = "message_id"
	FieldEmailTo    = "email_to"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentStorage   = "storage"
	ComponentAuth      = "auth"
	ComponentAssistant = "assistant"
	ComponentLLM       = "llm"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentEmail     = "email"
	ComponentAlerts    = "alerts"
	ComponentSummary   = "summary"
	ComponentSuggest   = "suggestions"
	ComponentCache     = "cache"
	ComponentRateLimit = "rate_limit"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpClassify = "classify"
	OpResolve  = "resolve"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpSend     = "send"
	OpValidate = "validate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithUser adds the acting user
func (f LogFields) WithUser(userID int64) LogFields {
	f[FieldUserID] = userID
	return f
}

// WithIntent adds classified intent and period fields
func (f LogFields) WithIntent(intent, period string) LogFields {
	f[FieldIntent] = intent
	if period != "" {
		f[FieldPeriod] = period
	}
	return f
}

// WithHTTPRequest adds request-side HTTP fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds response-side HTTP fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts fields to the alternating key/value form slog expects
func (f LogFields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
