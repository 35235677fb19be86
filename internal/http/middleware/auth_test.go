package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123")

func authRouter(opts AuthOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Auth(opts))
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})
	return r
}

func TestAuth_ValidToken(t *testing.T) {
	r := authRouter(AuthOptions{Secret: testSecret, Issuer: "study"})
	tok, err := MintToken(testSecret, "study", "student-7", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "student-7" {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
}

func TestAuth_FailuresAreUniform(t *testing.T) {
	r := authRouter(AuthOptions{Secret: testSecret, Issuer: "study"})

	good, _ := MintToken(testSecret, "study", "u1", time.Hour)
	expired, _ := MintToken(testSecret, "study", "u1", -time.Minute)
	otherKey, _ := MintToken([]byte("another-secret-entirely"), "study", "u1", time.Hour)
	wrongIss, _ := MintToken(testSecret, "elsewhere", "u1", time.Hour)
	noSub, _ := MintToken(testSecret, "study", "", time.Hour)
	noneAlg, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u1",
		Issuer:    "study",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := map[string]string{
		"missing":      "",
		"basic scheme": "Basic dTpw",
		"no token":     "Bearer ",
		"garbage":      "Bearer not.a.jwt",
		"expired":      "Bearer " + expired,
		"wrong key":    "Bearer " + otherKey,
		"wrong issuer": "Bearer " + wrongIss,
		"no subject":   "Bearer " + noSub,
		"alg none":     "Bearer " + noneAlg,
		"tampered":     "Bearer " + good + "x",
	}

	var first map[string]any
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("X-Request-ID", "rid-1")
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			r.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", w.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if first == nil {
				first = body
			}
			if body["code"] != "unauthorized" || body["message"] != first["message"] || body["request_id"] != "rid-1" {
				t.Fatalf("non-uniform body: %v", body)
			}
		})
	}
}

func TestAuth_IssuerOptional(t *testing.T) {
	r := authRouter(AuthOptions{Secret: testSecret})
	tok, _ := MintToken(testSecret, "anyone", "u2", time.Hour)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "bearer "+tok)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestUserID_Unset(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if UserID(c) != "" {
		t.Fatal("expected empty user")
	}
	c.Set(ctxKeyUserID, 42)
	if UserID(c) != "" {
		t.Fatal("non-string identity must be ignored")
	}
}
