package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func newAuthRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(secret))
	r.GET("/who", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": c.GetUint64("userId"), "username": c.GetString("username")})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	const secret = "test-secret"
	good, err := SignAccessToken(secret, 42, "alice", time.Minute)
	if err != nil {
		t.Fatalf("SignAccessToken() error = %v", err)
	}
	expired, _ := SignAccessToken(secret, 42, "alice", -time.Minute)
	forged, _ := SignAccessToken("other-secret", 42, "alice", time.Minute)

	cases := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"bearer header", "Bearer " + good, "", http.StatusOK},
		{"lowercase bearer", "bearer " + good, "", http.StatusOK},
		{"query token", "", good, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, "", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + forged, "", http.StatusUnauthorized},
		{"garbage", "Bearer abc.def", "", http.StatusUnauthorized},
	}
	r := newAuthRouter(secret)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			url := "/who"
			if tc.query != "" {
				url += "?token=" + tc.query
			}
			req := httptest.NewRequest(http.MethodGet, url, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestAuthMiddleware_DisabledWithoutSecret(t *testing.T) {
	r := newAuthRouter("")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/who", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestParseToken_Errors(t *testing.T) {
	const secret = "s"
	refresh, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: 1, Type: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	}).SignedString([]byte(secret))
	foreign, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	}).SignedString([]byte(secret))
	good, _ := SignAccessToken(secret, 7, "bob", time.Minute)

	if _, err := ParseToken(secret, refresh); !errors.Is(err, ErrNotAccessToken) {
		t.Fatalf("refresh token error = %v", err)
	}
	if _, err := ParseToken(secret, foreign); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("foreign issuer error = %v", err)
	}
	claims, err := ParseToken(secret, good)
	if err != nil || claims.UserID != 7 || claims.Username != "bob" || claims.Issuer != TokenIssuer {
		t.Fatalf("ParseToken(good) = %+v, %v", claims, err)
	}
}

func TestExtractBearer(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearer":       "",
		"":             "",
	}
	for in, want := range cases {
		if got := extractBearer(in); got != want {
			t.Errorf("extractBearer(%q) = %q, want %q", in, got, want)
		}
	}
}
