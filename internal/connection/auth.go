package connection

import (
	"context"
	"errors"
)

// Header names for the two credential styles the service accepts.
const (
	subscriptionKeyHeader = "Ocp-Apim-Subscription-Key"
	authorizationHeader   = "Authorization"
)

// AuthInfo is a resolved credential ready to be attached to a connection.
type AuthInfo struct {
	HeaderName string
	Value      string
}

// CredentialSource supplies a bearer credential for a connection attempt.
// Fetch is called before every dial; FetchOnExpiry is called at most once per
// attempt, after the service rejected the previous credential, so refreshable
// sources can force-renew.
type CredentialSource interface {
	Fetch(ctx context.Context, correlationID string) (AuthInfo, error)
	FetchOnExpiry(ctx context.Context, correlationID string) (AuthInfo, error)
}

// SubscriptionKey is a static service subscription key.
type SubscriptionKey string

// Fetch implements CredentialSource.
func (k SubscriptionKey) Fetch(context.Context, string) (AuthInfo, error) {
	if k == "" {
		return AuthInfo{}, errors.New("connection: empty subscription key")
	}
	return AuthInfo{HeaderName: subscriptionKeyHeader, Value: string(k)}, nil
}

// FetchOnExpiry implements CredentialSource. A static key cannot be renewed.
func (k SubscriptionKey) FetchOnExpiry(ctx context.Context, correlationID string) (AuthInfo, error) {
	return k.Fetch(ctx, correlationID)
}

// StaticToken is a caller-managed authorization token.
type StaticToken string

// Fetch implements CredentialSource.
func (t StaticToken) Fetch(context.Context, string) (AuthInfo, error) {
	if t == "" {
		return AuthInfo{}, errors.New("connection: empty authorization token")
	}
	return AuthInfo{HeaderName: authorizationHeader, Value: "Bearer " + string(t)}, nil
}

// FetchOnExpiry implements CredentialSource.
func (t StaticToken) FetchOnExpiry(ctx context.Context, correlationID string) (AuthInfo, error) {
	return t.Fetch(ctx, correlationID)
}

// TokenFunc adapts an asynchronous token fetcher to CredentialSource. The
// correlation id identifies the connection attempt for the caller's logs.
type TokenFunc func(ctx context.Context, correlationID string) (string, error)

// Fetch implements CredentialSource.
func (f TokenFunc) Fetch(ctx context.Context, correlationID string) (AuthInfo, error) {
	token, err := f(ctx, correlationID)
	if err != nil {
		return AuthInfo{}, err
	}
	return AuthInfo{HeaderName: authorizationHeader, Value: "Bearer " + token}, nil
}

// FetchOnExpiry implements CredentialSource.
func (f TokenFunc) FetchOnExpiry(ctx context.Context, correlationID string) (AuthInfo, error) {
	return f.Fetch(ctx, correlationID)
}
