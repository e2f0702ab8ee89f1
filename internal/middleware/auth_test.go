package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAdminAuth_WithValidCookie(t *testing.T) {
	m := NewAdminAuth("test-secret")

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/admin/sales", nil)

	m.SetAuthCookie(w)
	res := w.Result()
	resCookies := res.Cookies()
	if len(resCookies) == 0 {
		t.Fatalf("no cookies set by SetAuthCookie")
	}

	r.AddCookie(resCookies[0])

	handler := m.Middleware(next)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAdminAuth_WithoutCookie(t *testing.T) {
	m := NewAdminAuth("test-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/admin/sales", nil)

	handler := m.Middleware(next)
	handler.ServeHTTP(w, r)

	res := w.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestAdminAuth_ForgedToken(t *testing.T) {
	m := NewAdminAuth("test-secret")
	other := NewAdminAuth("other-secret")

	w := httptest.NewRecorder()
	other.SetAuthCookie(w)
	cookie := w.Result().Cookies()[0]

	r := httptest.NewRequest(http.MethodGet, "/api/admin/sales", nil)
	r.AddCookie(cookie)

	rec := httptest.NewRecorder()
	m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})).ServeHTTP(rec, r)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestAdminAuth_ExpiredToken(t *testing.T) {
	m := NewAdminAuth("test-secret")

	expired := m.signExpiry(time.Now().Add(-time.Minute).Unix())
	r := httptest.NewRequest(http.MethodGet, "/api/admin/sales", nil)
	r.AddCookie(&http.Cookie{Name: adminCookieName, Value: expired})

	rec := httptest.NewRecorder()
	m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})).ServeHTTP(rec, r)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}
