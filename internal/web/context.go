package web

import (
	"net/http"
	"strings"

	"github.com/JonMunkholm/prodcheck/internal/core"
)

// operatorHeader names the reviewer acting on the request.
const operatorHeader = "X-Operator"

// withOperator stores the operator from X-Operator in the request context.
func withOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if op := strings.TrimSpace(r.Header.Get(operatorHeader)); op != "" {
			r = r.WithContext(core.ContextWithOperator(r.Context(), op))
		}
		next.ServeHTTP(w, r)
	})
}
