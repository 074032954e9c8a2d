package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "unit-test-secret"

func signedToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func requestWithToken(token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestVerifyRequestFailsClosedWhenDisabled(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: false, HMACSecret: testSecret})
	token := signedToken(t, testSecret, jwt.MapClaims{"scope": ScopeWithdraw})
	if err := auth.VerifyRequest(requestWithToken(token), ScopeWithdraw); !errors.Is(err, ErrAuthDisabled) {
		t.Fatalf("error = %v, want %v", err, ErrAuthDisabled)
	}
}

func TestVerifyRequestRequiresToken(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret})
	if err := auth.VerifyRequest(requestWithToken(""), ScopeWithdraw); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("error = %v, want %v", err, ErrMissingToken)
	}
}

func TestVerifyRequestRejectsWrongSecret(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret})
	token := signedToken(t, "some-other-secret", jwt.MapClaims{"scope": ScopeWithdraw})
	if err := auth.VerifyRequest(requestWithToken(token), ScopeWithdraw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("error = %v, want %v", err, ErrInvalidToken)
	}
}

func TestVerifyRequestRejectsExpiredToken(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, ClockSkew: time.Second})
	token := signedToken(t, testSecret, jwt.MapClaims{
		"scope": ScopeWithdraw,
		"exp":   time.Now().Add(-time.Hour).Unix(),
	})
	if err := auth.VerifyRequest(requestWithToken(token), ScopeWithdraw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("error = %v, want %v", err, ErrInvalidToken)
	}
}

func TestVerifyRequestScopes(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret})

	cases := []struct {
		name    string
		scope   interface{}
		wantErr error
	}{
		{"space separated string", "balance:read " + ScopeWithdraw, nil},
		{"string array", []interface{}{ScopeWithdraw}, nil},
		{"missing scope", "balance:read", ErrMissingScope},
		{"no scope claim", nil, ErrMissingScope},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			claims := jwt.MapClaims{}
			if tc.scope != nil {
				claims["scope"] = tc.scope
			}
			token := signedToken(t, testSecret, claims)
			err := auth.VerifyRequest(requestWithToken(token), ScopeWithdraw)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestVerifyRequestIssuerAndAudience(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{
		Enabled:    true,
		HMACSecret: testSecret,
		Issuer:     "bazaar-ops",
		Audience:   "bazaard",
	})

	good := signedToken(t, testSecret, jwt.MapClaims{
		"scope": ScopeWithdraw,
		"iss":   "bazaar-ops",
		"aud":   "bazaard",
	})
	if err := auth.VerifyRequest(requestWithToken(good), ScopeWithdraw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wrongIssuer := signedToken(t, testSecret, jwt.MapClaims{
		"scope": ScopeWithdraw,
		"iss":   "someone-else",
		"aud":   "bazaard",
	})
	if err := auth.VerifyRequest(requestWithToken(wrongIssuer), ScopeWithdraw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("error = %v, want %v", err, ErrInvalidToken)
	}
}
