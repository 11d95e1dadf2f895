package api

import "net/http"

// authMiddleware enforces token authentication on every route except the
// scrape endpoint. The token travels in the X-Amps-Token header or the
// token query parameter.
func (a *ApiManagerCtx) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.conf.Auth.Enabled || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Amps-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if token == "" || token != a.conf.Auth.Token {
			a.logger.Warn().Str("remote", r.RemoteAddr).Msg("unauthorized access attempt")
			http.Error(w, "401 unauthorized: valid token required", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
