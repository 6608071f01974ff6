package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"certistage/config"
)

// Recover turns a handler panic into a 500 instead of killing the connection
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil || rec == http.ErrAbortHandler {
				if rec != nil {
					panic(rec)
				}
				return
			}
			config.Log.WithFields(logrus.Fields{
				"request_id": RequestID(r.Context()),
				"panic":      rec,
				"stack":      string(debug.Stack()),
			}).Error("❌ Handler panicked")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"type":"error","code":"INTERNAL","message":"internal server error"}`))
		}()
		next.ServeHTTP(w, r)
	})
}
