package auth

import (
	"crypto/ecdsa"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// SubjectHeader carries the subject identifier when bearer verification is disabled.
const SubjectHeader = "X-Subject-ID"

type jwtVerifier struct {
	publicKey *ecdsa.PublicKey
}

func newJWTVerifierFromPEM(publicKeyPEM string) (*jwtVerifier, error) {
	if publicKeyPEM == "" {
		return nil, errors.New("JWT public key not provided")
	}

	publicKey, err := jwt.ParseECPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, err
	}

	return &jwtVerifier{publicKey: publicKey}, nil
}

// verify checks the token signature, issuer and expiry and returns the subject claim.
func (v *jwtVerifier) verify(tokenStr string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return v.publicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid claims")
	}
	if claims.Subject == "" {
		return "", errors.New("missing subject claim")
	}

	return claims.Subject, nil
}

// BearerMiddleware verifies ES256 bearer tokens and stores the subject claim in the request context.
//
// Requests without an Authorization header pass through with no subject so the engine can
// report them as unauthenticated. A token that is present but invalid is rejected with 401.
func BearerMiddleware(publicKeyPEM string) (func(http.Handler) http.Handler, error) {
	v, err := newJWTVerifierFromPEM(publicKeyPEM)
	if err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := extractBearerToken(r)
			if tokenStr == "" {
				next.ServeHTTP(w, r)
				return
			}

			subject, err := v.verify(tokenStr)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to verify bearer token")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
		})
	}, nil
}

// HeaderSubjectMiddleware trusts the X-Subject-ID header. Development only.
func HeaderSubjectMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if subject := r.Header.Get(SubjectHeader); subject != "" {
				r = r.WithContext(WithSubject(r.Context(), subject))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken extracts the JWT from the Authorization header.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return parts[1]
}
