package client

import (
	"context"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/casekeeper/internal/auth"
)

// tokenTTL is the lifetime of self-issued tokens. They are refreshed five minutes before expiry.
const tokenTTL = time.Hour

// AuthInterceptor attaches caller identity to outgoing requests: a bearer token
// signed with an ES256 key, or the X-Subject-ID header for servers running without auth.
type AuthInterceptor struct {
	signingKey string
	subject    string

	mu          sync.Mutex
	cachedToken string
	tokenExpiry time.Time
}

// NewBearerInterceptor signs tokens for subject with the PEM-encoded ECDSA private key.
func NewBearerInterceptor(signingKeyPEM, subject string) *AuthInterceptor {
	return &AuthInterceptor{signingKey: signingKeyPEM, subject: subject}
}

// NewSubjectInterceptor sends subject in the X-Subject-ID header. Development only.
func NewSubjectInterceptor(subject string) *AuthInterceptor {
	return &AuthInterceptor{subject: subject}
}

// WrapUnary implements connect.Interceptor.
func (i *AuthInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if i.signingKey == "" {
			req.Header().Set(auth.SubjectHeader, i.subject)
			return next(ctx, req)
		}

		token, err := i.token()
		if err != nil {
			return nil, connect.NewError(connect.CodeUnauthenticated, err)
		}
		req.Header().Set("Authorization", "Bearer "+token)
		return next(ctx, req)
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (i *AuthInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler is not used for client interceptors.
func (i *AuthInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}

func (i *AuthInterceptor) token() (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.cachedToken != "" && time.Now().Add(5*time.Minute).Before(i.tokenExpiry) {
		return i.cachedToken, nil
	}

	token, err := auth.IssueToken(i.signingKey, i.subject, tokenTTL)
	if err != nil {
		return "", err
	}

	i.cachedToken = token
	i.tokenExpiry = time.Now().Add(tokenTTL)

	log.Debug().
		Str("subject_id", i.subject).
		Time("expiry", i.tokenExpiry).
		Msg("cached new JWT token")

	return token, nil
}
