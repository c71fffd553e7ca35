package httpapi

import (
	"net/http"
	"sort"
	"strings"
)

// methodMux dispatches on r.Method. HEAD falls back to GET; anything else
// unknown is a 405 carrying an Allow header.
func methodMux(m map[string]http.HandlerFunc) http.HandlerFunc {
	allowed := make([]string, 0, len(m))
	for method := range m {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	allow := strings.Join(allowed, ", ")

	return func(w http.ResponseWriter, r *http.Request) {
		h, ok := m[r.Method]
		if !ok && r.Method == http.MethodHead {
			h, ok = m[http.MethodGet]
		}
		if !ok {
			w.Header().Set("Allow", allow)
			WriteError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" not allowed; use "+allow)
			return
		}
		h(w, r)
	}
}
