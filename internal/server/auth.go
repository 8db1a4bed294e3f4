package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sessionCookie = "perdiem_session"

// sessionStore keeps live session tokens in memory. Cookie values are
// "<token>.<hex hmac-sha256(token)>".
type sessionStore struct {
	mu     sync.Mutex
	secret []byte
	ttl    time.Duration
	tokens map[string]time.Time
	now    func() time.Time
}

func newSessionStore(secret string, ttl time.Duration) *sessionStore {
	return &sessionStore{
		secret: []byte(secret),
		ttl:    ttl,
		tokens: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (s *sessionStore) sign(token string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// create starts a session and returns its cookie value.
func (s *sessionStore) create() string {
	token := uuid.NewString()
	now := s.now()

	s.mu.Lock()
	for t, exp := range s.tokens {
		if !now.Before(exp) {
			delete(s.tokens, t)
		}
	}
	s.tokens[token] = now.Add(s.ttl)
	s.mu.Unlock()

	return token + "." + s.sign(token)
}

// token verifies the signature on a cookie value and returns the token.
func (s *sessionStore) token(value string) (string, bool) {
	token, sig, ok := strings.Cut(value, ".")
	if !ok || token == "" {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(token))) {
		return "", false
	}
	return token, true
}

func (s *sessionStore) valid(value string) bool {
	token, ok := s.token(value)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.tokens[token]
	if !ok {
		return false
	}
	if !s.now().Before(exp) {
		delete(s.tokens, token)
		return false
	}
	return true
}

func (s *sessionStore) destroy(value string) {
	token, ok := s.token(value)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

func (s *Server) authenticated(r *http.Request) bool {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return false
	}
	return s.sessions.valid(c.Value)
}

// requireAuth answers API calls without a session with 401 JSON and sends
// everything else to the login page.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authenticated(r) {
			next.ServeHTTP(w, r)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/api/") {
			respondError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// readCredentials accepts a JSON body or a urlencoded form.
func readCredentials(r *http.Request) (credentials, error) {
	var c credentials
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		err := decodeJSON(r, &c)
		return c, err
	}
	if err := r.ParseForm(); err != nil {
		return c, err
	}
	c.Username = r.PostFormValue("username")
	c.Password = r.PostFormValue("password")
	return c, nil
}

func (s *Server) checkCredentials(c credentials) bool {
	userOK := subtle.ConstantTimeCompare([]byte(c.Username), []byte(s.auth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(c.Password), []byte(s.auth.Password)) == 1
	return userOK && passOK
}

func (s *Server) newCookie(value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if s.auth.SecureCookie {
		sameSite = http.SameSiteStrictMode
	}
	return &http.Cookie{
		Name:     sessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.auth.SecureCookie,
		SameSite: sameSite,
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	c, err := readCredentials(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid request body"})
		return
	}
	if !s.checkCredentials(c) {
		zap.L().Info("server: login rejected", zap.String("username", c.Username))
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid credentials"})
		return
	}

	http.SetCookie(w, s.newCookie(s.sessions.create(), int(s.sessions.ttl.Seconds())))
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		s.sessions.destroy(c.Value)
	}
	http.SetCookie(w, s.newCookie("", -1))
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func handleAuthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": true})
}
