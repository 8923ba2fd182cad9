package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it at Error level with the
// panic value and full stack trace. Call it in a defer statement:
//
//	defer observability.RecoverPanic(logger, "last-used update")
//
// After logging, the panic is not re-raised. Intended for fire-and-forget
// goroutines whose failure must never reach the request path.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("panic recovered")
	}
}
