// Package httputil provides HTTP utilities for standardized request/response handling.
//
// Every error body has the shape {"message": "..."}. Service errors are
// translated with WriteAppError, which maps apperrors kinds to status codes
// and hides internal failures behind a generic 500.
//
//	if err != nil {
//		httputil.WriteAppError(w, r, err)
//		return
//	}
//	httputil.WriteSuccess(w, resp)
//
// Middleware:
//
//	router.Use(httputil.RequestIDMiddleware, httputil.LoggingMiddleware(logger), httputil.RecoveryMiddleware)
package httputil
