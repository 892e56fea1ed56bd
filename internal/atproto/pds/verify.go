package pds

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ipfs/go-cid"

	"Anchor/internal/atproto/utils"
)

const defaultVerifyCacheSize = 512

// Verifier re-resolves StrongRefs and checks that the server still reports
// the content hash recorded at write time. A mismatch means the record
// bytes changed under the reference and is surfaced as ErrIntegrity.
//
// Records are immutable once published, so a ref that verified once stays
// verified; results are kept in an LRU to avoid re-fetching on every check.
type Verifier struct {
	client Client
	cache  *lru.Cache[string, string] // uri -> verified cid
}

// NewVerifier creates a verifier backed by the given record client.
func NewVerifier(client Client) (*Verifier, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	cache, err := lru.New[string, string](defaultVerifyCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create verify cache: %w", err)
	}
	return &Verifier{client: client, cache: cache}, nil
}

// VerifyRef checks that the record at ref.URI still hashes to ref.CID.
// Returns nil when intact, ErrIntegrity on mismatch, ErrNotFound when the
// record is gone.
func (v *Verifier) VerifyRef(ctx context.Context, ref StrongRef) error {
	if ref.URI == "" || ref.CID == "" {
		return fmt.Errorf("%w: ref missing uri or cid", ErrValidation)
	}
	if utils.ExtractDIDFromURI(ref.URI) == "" || utils.ExtractCollectionFromURI(ref.URI) == "" {
		return fmt.Errorf("%w: malformed record uri %q", ErrValidation, ref.URI)
	}

	expected, err := cid.Decode(ref.CID)
	if err != nil {
		return fmt.Errorf("%w: malformed cid %q: %v", ErrValidation, ref.CID, err)
	}

	if cached, ok := v.cache.Get(ref.URI); ok {
		if cached == expected.String() {
			return nil
		}
		// Same URI verified against a different CID earlier. The record
		// cannot have two hashes; fall through and re-fetch.
		v.cache.Remove(ref.URI)
	}

	record, err := v.client.GetRecord(ctx, ref.URI)
	if err != nil {
		return err
	}

	actual, err := cid.Decode(record.CID)
	if err != nil {
		return fmt.Errorf("%w: server returned malformed cid %q: %v", ErrServer, record.CID, err)
	}

	if !expected.Equals(actual) {
		return fmt.Errorf("%w: %s has cid %s, expected %s", ErrIntegrity, ref.URI, actual, expected)
	}

	v.cache.Add(ref.URI, expected.String())
	return nil
}
