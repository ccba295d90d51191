package infrastructure

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func authRouter(verifier *JWTVerifier) *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthMiddleware(verifier), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUserIDKey))
	})
	return r
}

func TestAuthMiddlewareAcceptsUserIDClaim(t *testing.T) {
	verifier := NewJWTVerifier("secret")
	token, err := verifier.Sign(Claims{UserID: "user-1"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	authRouter(verifier).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "user-1" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
}

func TestAuthMiddlewareFallsBackToSubject(t *testing.T) {
	verifier := NewJWTVerifier("secret")
	token, err := verifier.Sign(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-2"}})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	userID, err := verifier.UserID(token)
	if err != nil || userID != "user-2" {
		t.Fatalf("unexpected user id %q err %v", userID, err)
	}
}

func TestAuthMiddlewareRejects(t *testing.T) {
	verifier := NewJWTVerifier("secret")
	other := NewJWTVerifier("other")
	foreign, _ := other.Sign(Claims{UserID: "user-1"})
	expired, _ := verifier.Sign(Claims{UserID: "user-1", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}})
	anonymous, _ := verifier.Sign(Claims{})

	cases := map[string]string{
		"missing":      "",
		"not bearer":   "Basic abc",
		"wrong secret": "Bearer " + foreign,
		"expired":      "Bearer " + expired,
		"no subject":   "Bearer " + anonymous,
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		authRouter(verifier).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, rec.Code)
		}
	}
}

func TestJWTVerifierRejectsOtherAlgorithms(t *testing.T) {
	verifier := NewJWTVerifier("secret")
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{UserID: "user-1"}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifier.UserID(token); err == nil {
		t.Fatal("expected HS512 token to be rejected")
	}
}
