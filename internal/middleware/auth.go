package middleware

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	adminCookieName = "admin_token"
	adminCookieTTL  = 12 * time.Hour
)

// AdminAuth выполняет проверку доступа к административному API по
// подписанному cookie.
type AdminAuth struct {
	secretKey []byte
}

// NewAdminAuth создаёт новый экземпляр AdminAuth с указанным секретным ключом.
func NewAdminAuth(secret string) *AdminAuth {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AdminAuth{
		secretKey: key,
	}
}

// Middleware проверяет cookie административной сессии.
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(adminCookieName)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		if !a.validToken(cookie.Value) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// SetAuthCookie устанавливает cookie административной сессии.
func (a *AdminAuth) SetAuthCookie(w http.ResponseWriter) {
	expires := time.Now().Add(adminCookieTTL)

	cookie := &http.Cookie{
		Name:     adminCookieName,
		Value:    a.signExpiry(expires.Unix()),
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	http.SetCookie(w, cookie)
}

func (a *AdminAuth) signExpiry(expiresAt int64) string {
	payload := strconv.FormatInt(expiresAt, 10)
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(payload))
	return payload + "." + hex.EncodeToString(mac.Sum(nil))
}

func (a *AdminAuth) validToken(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return false
	}

	expiresAt, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return false
	}
	if time.Now().Unix() > expiresAt {
		return false
	}

	expected := a.signExpiry(expiresAt)
	expectedParts := strings.Split(expected, ".")

	return hmac.Equal([]byte(parts[1]), []byte(expectedParts[1]))
}
