package observability

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// requestFieldCount is how many request-scoped fields FromContext can
// attach: trace, span, request, provider, model.
const requestFieldCount = 5

// The base logger is a process-wide singleton. Request scoping happens by
// deriving annotated children in FromContext; loggers are never stored in
// contexts, only identity values are.
//
//nolint:gochecknoglobals // singleton logger
var (
	globalLogger *zap.Logger
	loggerMu     sync.RWMutex
)

// InitLogger builds the production logger and installs it as the process
// base logger. Called once at startup (DI constructor).
func InitLogger() (*zap.Logger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	loggerMu.Lock()
	globalLogger = logger
	loggerMu.Unlock()

	return logger, nil
}

func getBaseLogger() *zap.Logger {
	loggerMu.RLock()
	logger := globalLogger
	loggerMu.RUnlock()

	if logger == nil {
		// Tests and early startup paths may log before InitLogger runs.
		logger, _ = zap.NewProduction()
	}

	return logger
}

// FromContext returns the base logger annotated with whatever request
// identity the context carries. Absent values are omitted, not logged
// empty.
func FromContext(ctx context.Context) *zap.Logger {
	fields := make([]zap.Field, 0, requestFieldCount)

	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, String("trace_id", traceID))
	}
	if spanID := GetSpanID(ctx); spanID != "" {
		fields = append(fields, String("span_id", spanID))
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, String("request_id", requestID))
	}
	if provider := GetProvider(ctx); provider != "" {
		fields = append(fields, String("provider", provider))
	}
	if model := GetModel(ctx); model != "" {
		fields = append(fields, String("model", model))
	}

	return getBaseLogger().With(fields...)
}
