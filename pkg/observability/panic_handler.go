package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic logs a panic raised by a background job and swallows it.
// Call it directly in a defer:
//
//	defer observability.RecoverPanic(logger, "ledger sweep")
func RecoverPanic(logger *Logger, job string) {
	r := recover()
	if r == nil {
		return
	}
	logger.WithFields(map[string]interface{}{
		"job":   job,
		"panic": fmt.Sprint(r),
		"stack": string(debug.Stack()),
	}).Error("job panicked")
}
