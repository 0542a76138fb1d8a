package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func TestTokenRoundTrip(t *testing.T) {
	InitJWT("test-secret")

	token, err := GenerateToken("wallet-1", true)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Wallet != "wallet-1" || !claims.Admin {
		t.Errorf("expected wallet-1 admin, got %s admin=%v", claims.Wallet, claims.Admin)
	}

	InitJWT("other-secret")
	if _, err := ValidateToken(token); err == nil {
		t.Error("expected token signed with another secret to be rejected")
	}
}

func TestValidateRejectsNoneAlgorithm(t *testing.T) {
	InitJWT("test-secret")
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Wallet: "w"})
	s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ValidateToken(s); err == nil {
		t.Error("expected unsigned token to be rejected")
	}
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	InitJWT("test-secret")
	valid, _ := GenerateToken("wallet-1", false)

	r := gin.New()
	r.GET("/me", AuthMiddleware(), func(c *gin.Context) {
		w, _ := GetWallet(c)
		c.String(http.StatusOK, w)
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc", http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, w.Code)
			}
			if tt.status == http.StatusOK && w.Body.String() != "wallet-1" {
				t.Errorf("expected wallet-1, got %s", w.Body.String())
			}
		})
	}
}
