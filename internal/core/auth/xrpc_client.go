package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/xrpc"
)

// XRPCSessionClient implements SessionClient against a real PDS using
// indigo's XRPC client. One instance is shared by the Manager and the
// refresh scheduler.
type XRPCSessionClient struct {
	host            string
	userAgent       string
	sessionDuration time.Duration
	http            *http.Client
}

var _ SessionClient = (*XRPCSessionClient)(nil)

// NewXRPCSessionClient creates a session client for the given PDS host.
func NewXRPCSessionClient(cfg Config) *XRPCSessionClient {
	cfg = cfg.withDefaults()
	return &XRPCSessionClient{
		host:            cfg.PDSHost,
		userAgent:       cfg.UserAgent,
		sessionDuration: cfg.SessionDuration,
		http:            &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// CreateSession calls com.atproto.server.createSession with an app password.
func (c *XRPCSessionClient) CreateSession(ctx context.Context, identifier, password string) (*Credentials, error) {
	if identifier == "" {
		return nil, fmt.Errorf("%w: identifier is required", ErrInvalidCredentials)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidCredentials)
	}

	client := &xrpc.Client{
		Host:      c.host,
		Client:    c.http,
		UserAgent: &c.userAgent,
	}

	output, err := atproto.ServerCreateSession(ctx, client, &atproto.ServerCreateSession_Input{
		Identifier: identifier,
		Password:   password,
	})
	if err != nil {
		return nil, classifyLoginError(err)
	}
	if output.AccessJwt == "" || output.RefreshJwt == "" {
		return nil, fmt.Errorf("%w: createSession response missing tokens", ErrServer)
	}

	return c.credentialsFromTokens(output.Did, output.Handle, output.AccessJwt, output.RefreshJwt), nil
}

// RefreshSession calls com.atproto.server.refreshSession. The refresh token
// authenticates the request; the access token may already be expired.
func (c *XRPCSessionClient) RefreshSession(ctx context.Context, creds *Credentials) (*Credentials, error) {
	if creds == nil || creds.RefreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token is required", ErrRefreshRejected)
	}

	client := &xrpc.Client{
		Host:      c.host,
		Client:    c.http,
		UserAgent: &c.userAgent,
		Auth: &xrpc.AuthInfo{
			AccessJwt:  creds.AccessToken,
			RefreshJwt: creds.RefreshToken,
			Did:        creds.DID,
			Handle:     creds.Handle,
		},
	}

	output, err := atproto.ServerRefreshSession(ctx, client)
	if err != nil {
		return nil, classifyRefreshError(err)
	}
	if output.AccessJwt == "" || output.RefreshJwt == "" {
		return nil, fmt.Errorf("%w: refresh response missing tokens", ErrServer)
	}

	return c.credentialsFromTokens(output.Did, output.Handle, output.AccessJwt, output.RefreshJwt), nil
}

func (c *XRPCSessionClient) credentialsFromTokens(did, handle, accessJwt, refreshJwt string) *Credentials {
	now := time.Now()
	return &Credentials{
		DID:          did,
		Handle:       handle,
		PDSURL:       c.host,
		AccessToken:  accessJwt,
		RefreshToken: refreshJwt,
		IssuedAt:     now,
		ExpiresAt:    tokenExpiry(accessJwt, now, c.sessionDuration),
	}
}

// classifyLoginError maps a createSession failure onto the auth error
// taxonomy. 400/401 means the PDS looked at the credentials and said no.
func classifyLoginError(err error) error {
	var xrpcErr *xrpc.Error
	if errors.As(err, &xrpcErr) {
		switch {
		case xrpcErr.StatusCode == 400 || xrpcErr.StatusCode == 401:
			return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		case xrpcErr.StatusCode >= 500:
			return fmt.Errorf("%w: %v", ErrServer, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// classifyRefreshError distinguishes definitive rejections (never retried)
// from transient failures (retried by the scheduler).
func classifyRefreshError(err error) error {
	var xrpcErr *xrpc.Error
	if errors.As(err, &xrpcErr) {
		switch {
		case xrpcErr.StatusCode == 400 || xrpcErr.StatusCode == 401:
			// Invalid grant: the refresh token was revoked, already used,
			// or expired. Only a fresh login helps.
			return fmt.Errorf("%w: %v", ErrRefreshRejected, err)
		case xrpcErr.StatusCode >= 500:
			return fmt.Errorf("%w: %v", ErrServer, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
