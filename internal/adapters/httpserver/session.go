package httpserver

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
)

const sessionCookie = "session"

func (s *Server) sign(payload []byte) string {
	h := hmac.New(sha256.New, s.sessionKey)
	h.Write(payload)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// readSession returns the session id from the signed cookie, or "" when the
// cookie is missing or tampered with.
func (s *Server) readSession(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	parts := strings.SplitN(c.Value, ".", 2)
	if len(parts) != 2 {
		return ""
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return ""
	}
	if !hmac.Equal([]byte(parts[0]), []byte(s.sign(payload))) {
		return ""
	}
	return string(payload)
}

func (s *Server) writeSession(w http.ResponseWriter, id string) {
	payload := []byte(id)
	val := s.sign(payload) + "." + base64.RawURLEncoding.EncodeToString(payload)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    val,
		Path:     "/",
		MaxAge:   60 * 60 * 24 * 30,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
