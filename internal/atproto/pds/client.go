// Package pds provides authenticated record primitives against a user's
// Personal Data Server. The client obtains tokens from the session manager
// on every call, so a refresh happening mid-publish is picked up
// transparently; it never caches tokens itself.
package pds

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/bluesky-social/indigo/xrpc"

	"Anchor/internal/atproto/utils"
)

// Session supplies bearer tokens for PDS calls. Implemented by the auth
// Manager; tests stub it.
type Session interface {
	// CurrentToken returns an access token guaranteed fresh at return time.
	CurrentToken(ctx context.Context) (string, error)

	// ForceRefresh refreshes even if the cached token looks fresh. Called
	// after the PDS rejects a token with 401.
	ForceRefresh(ctx context.Context) (string, error)

	// DID returns the authenticated account's DID.
	DID() string
}

// StrongRef is a verifiable pointer to a record: its AT-URI plus the
// server-computed content hash of exactly the bytes written. The server is
// the content-addressing authority; the client never computes its own CID.
type StrongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// RecordResponse contains a single record retrieved from the PDS.
type RecordResponse struct {
	URI   string
	CID   string
	Value map[string]any
}

// CreatedAt returns the record's createdAt timestamp. Falls back to the
// current time when the field is missing or malformed.
func (r *RecordResponse) CreatedAt() time.Time {
	return utils.ParseCreatedAt(r.Value)
}

// Client provides record create/get/delete against the session's repository.
type Client interface {
	// CreateRecord creates a record in the user's repository.
	// If rkey is empty, the PDS generates a TID.
	CreateRecord(ctx context.Context, collection string, rkey string, record any) (*StrongRef, error)

	// GetRecord retrieves a record by its AT-URI. Used to re-resolve a
	// StrongRef, primarily for integrity verification.
	GetRecord(ctx context.Context, uri string) (*RecordResponse, error)

	// DeleteRecord deletes a record from the user's repository.
	DeleteRecord(ctx context.Context, collection string, rkey string) error

	// DID returns the authenticated user's DID.
	DID() string

	// HostURL returns the PDS host URL.
	HostURL() string
}

// client implements Client over indigo's xrpc.Client with Bearer auth.
type client struct {
	host      string
	userAgent string
	session   Session
	http      *http.Client
}

var _ Client = (*client)(nil)

// NewClient creates a record client for the given PDS host. Every call
// pulls a token from the session and retries exactly once after a
// transparent refresh if the PDS answers 401.
func NewClient(host, userAgent string, session Session, httpClient *http.Client) (Client, error) {
	if host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &client{
		host:      host,
		userAgent: userAgent,
		session:   session,
		http:      httpClient,
	}, nil
}

func (c *client) DID() string {
	return c.session.DID()
}

func (c *client) HostURL() string {
	return c.host
}

// CreateRecord creates a record via com.atproto.repo.createRecord.
func (c *client) CreateRecord(ctx context.Context, collection string, rkey string, record any) (*StrongRef, error) {
	payload := map[string]any{
		"repo":       c.session.DID(),
		"collection": collection,
		"record":     record,
	}

	// Only include rkey if provided (PDS generates a TID otherwise)
	if rkey != "" {
		payload["rkey"] = rkey
	}

	var result StrongRef
	err := c.do(ctx, "createRecord", xrpc.Procedure, "com.atproto.repo.createRecord", nil, payload, &result)
	if err != nil {
		return nil, err
	}
	if result.URI == "" || result.CID == "" {
		return nil, fmt.Errorf("createRecord: %w: response missing uri or cid", ErrServer)
	}

	return &result, nil
}

// GetRecord retrieves a record via com.atproto.repo.getRecord.
func (c *client) GetRecord(ctx context.Context, uri string) (*RecordResponse, error) {
	aturi, err := syntax.ParseATURI(uri)
	if err != nil {
		return nil, fmt.Errorf("getRecord: invalid AT-URI %q: %w", uri, err)
	}

	params := map[string]any{
		"repo":       aturi.Authority().String(),
		"collection": aturi.Collection().String(),
		"rkey":       aturi.RecordKey().String(),
	}

	var result struct {
		URI   string         `json:"uri"`
		CID   string         `json:"cid"`
		Value map[string]any `json:"value"`
	}

	if err := c.do(ctx, "getRecord", xrpc.Query, "com.atproto.repo.getRecord", params, nil, &result); err != nil {
		return nil, err
	}

	return &RecordResponse{
		URI:   result.URI,
		CID:   result.CID,
		Value: result.Value,
	}, nil
}

// DeleteRecord deletes a record via com.atproto.repo.deleteRecord.
func (c *client) DeleteRecord(ctx context.Context, collection string, rkey string) error {
	payload := map[string]any{
		"repo":       c.session.DID(),
		"collection": collection,
		"rkey":       rkey,
	}

	// deleteRecord returns an empty response on success
	return c.do(ctx, "deleteRecord", xrpc.Procedure, "com.atproto.repo.deleteRecord", nil, payload, nil)
}

// do executes one XRPC call with the session's current token. A 401
// triggers exactly one forced refresh and retry before the failure
// surfaces to the caller. Token acquisition errors pass through untouched;
// transport errors come back wrapped in the pds error taxonomy.
func (c *client) do(ctx context.Context, operation string, kind string, method string, params map[string]any, body any, out any) error {
	token, err := c.session.CurrentToken(ctx)
	if err != nil {
		return err
	}

	err = c.doWithToken(ctx, token, kind, method, params, body, out)
	if !isUnauthorized(err) {
		return wrapXRPCError(err, operation)
	}

	// The PDS rejected a token that looked valid locally. Refresh once and
	// retry; a second 401 surfaces to the caller.
	token, refreshErr := c.session.ForceRefresh(ctx)
	if refreshErr != nil {
		return refreshErr
	}
	return wrapXRPCError(c.doWithToken(ctx, token, kind, method, params, body, out), operation)
}

func (c *client) doWithToken(ctx context.Context, token string, kind string, method string, params map[string]any, body any, out any) error {
	xc := &xrpc.Client{
		Host:   c.host,
		Client: c.http,
		Auth: &xrpc.AuthInfo{
			AccessJwt: token,
			Did:       c.session.DID(),
		},
	}
	if c.userAgent != "" {
		xc.UserAgent = &c.userAgent
	}

	inpenc := ""
	if body != nil {
		inpenc = "application/json"
	}
	return xc.Do(ctx, kind, inpenc, method, params, body, out)
}

func isUnauthorized(err error) bool {
	if err == nil {
		return false
	}
	var xrpcErr *xrpc.Error
	return errors.As(err, &xrpcErr) && xrpcErr.StatusCode == 401
}

// wrapXRPCError inspects an error from the xrpc client and wraps it with
// our typed errors so callers can use errors.Is().
func wrapXRPCError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var xrpcErr *xrpc.Error
	if errors.As(err, &xrpcErr) {
		switch {
		case xrpcErr.StatusCode == 400:
			return fmt.Errorf("%s: %w: %v", operation, ErrValidation, err)
		case xrpcErr.StatusCode == 401:
			return fmt.Errorf("%s: %w: %v", operation, ErrUnauthorized, err)
		case xrpcErr.StatusCode == 403:
			return fmt.Errorf("%s: %w: %v", operation, ErrForbidden, err)
		case xrpcErr.StatusCode == 404:
			return fmt.Errorf("%s: %w: %v", operation, ErrNotFound, err)
		case xrpcErr.StatusCode == 429:
			return fmt.Errorf("%s: %w: %v", operation, ErrRateLimited, err)
		case xrpcErr.StatusCode >= 500:
			return fmt.Errorf("%s: %w: %v", operation, ErrServer, err)
		}
	}

	return fmt.Errorf("%s: %w: %v", operation, ErrNetwork, err)
}
