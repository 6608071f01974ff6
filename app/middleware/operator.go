package middleware

import "net/http"

// OperatorHeader carries the operator id set by the authenticating proxy
const OperatorHeader = "X-Operator-ID"

// RequireOperator rejects admin requests that arrive without an operator id
func RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(OperatorHeader) == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"type":"error","code":"UNAUTHENTICATED","message":"operator authentication required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
