package server

import (
	"crypto/subtle"
	"net/http"
)

// openPaths never require credentials.
var openPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	if s.cfg.AuthUser == "" || s.cfg.AuthPassword == "" {
		return next
	}
	wantUser := []byte(s.cfg.AuthUser)
	wantPass := []byte(s.cfg.AuthPassword)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if openPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		userOK := subtle.ConstantTimeCompare([]byte(user), wantUser) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), wantPass) == 1
		if !ok || !userOK || !passOK {
			w.Header().Set("WWW-Authenticate", `Basic realm="dockerstats"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
