package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func generateKeyPEMs(t *testing.T) (privatePEM, publicPEM string) {
	t.Helper()
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	privateDER, err := x509.MarshalECPrivateKey(privateKey)
	require.NoError(t, err)
	publicDER, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)

	privatePEM = string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privateDER}))
	publicPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER}))
	return privatePEM, publicPEM
}

func subjectEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(SubjectFromContext(r.Context())))
	})
}

func TestNewJWTVerifierFromPEM(t *testing.T) {
	t.Run("empty public key", func(t *testing.T) {
		v, err := newJWTVerifierFromPEM("")
		require.Error(t, err)
		require.Nil(t, v)
		require.Equal(t, "JWT public key not provided", err.Error())
	})

	t.Run("invalid PEM", func(t *testing.T) {
		v, err := newJWTVerifierFromPEM("invalid pem")
		require.Error(t, err)
		require.Nil(t, v)
	})
}

func TestBearerMiddleware(t *testing.T) {
	privatePEM, publicPEM := generateKeyPEMs(t)
	otherPrivatePEM, _ := generateKeyPEMs(t)

	mw, err := BearerMiddleware(publicPEM)
	require.NoError(t, err)
	handler := mw(subjectEcho())

	validToken, err := IssueToken(privatePEM, "user-123", time.Hour)
	require.NoError(t, err)
	expiredToken, err := IssueToken(privatePEM, "user-123", -time.Hour)
	require.NoError(t, err)
	foreignToken, err := IssueToken(otherPrivatePEM, "user-123", time.Hour)
	require.NoError(t, err)

	privateKey, err := jwt.ParseECPrivateKeyFromPEM([]byte(privatePEM))
	require.NoError(t, err)
	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodES256, &jwt.RegisteredClaims{
		Subject:   "user-123",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(privateKey)
	require.NoError(t, err)

	tests := []struct {
		name        string
		header      string
		wantStatus  int
		wantSubject string
	}{
		{name: "valid token", header: "Bearer " + validToken, wantStatus: http.StatusOK, wantSubject: "user-123"},
		{name: "no header passes through", header: "", wantStatus: http.StatusOK, wantSubject: ""},
		{name: "expired token", header: "Bearer " + expiredToken, wantStatus: http.StatusUnauthorized},
		{name: "wrong key", header: "Bearer " + foreignToken, wantStatus: http.StatusUnauthorized},
		{name: "wrong issuer", header: "Bearer " + wrongIssuer, wantStatus: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer not-a-jwt", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/casekeeper.v1.DirectoryService/GetUser", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				require.Equal(t, tt.wantSubject, rec.Body.String())
			}
		})
	}
}

func TestHeaderSubjectMiddleware(t *testing.T) {
	handler := HeaderSubjectMiddleware()(subjectEcho())

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(SubjectHeader, "dev-user")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, "dev-user", rec.Body.String())
}
