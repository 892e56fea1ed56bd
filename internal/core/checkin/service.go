package checkin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"

	"Anchor/internal/atproto/pds"
)

// Service is the check-in publish pipeline: write the address record, then
// write the check-in record referencing it by StrongRef, then optionally
// crosspost.
//
// The PDS offers no multi-record atomicity, so steps 1-2 are not a
// transaction. A failure (or crash) between them leaves an unreferenced but
// harmless address record - an accepted at-least-once write, cleaned up by
// a future garbage-collection pass, not here.
type Service struct {
	records     RecordCreator
	crossposter Crossposter
	log         *slog.Logger
	now         func() time.Time
}

// ServiceOption configures the service.
type ServiceOption func(*Service)

// WithCrossposter enables the optional social feed crosspost.
func WithCrossposter(c Crossposter) ServiceOption {
	return func(s *Service) {
		s.crossposter = c
	}
}

// WithServiceLogger sets the structured logger.
func WithServiceLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

// WithServiceClock overrides the time source for tests.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a check-in publisher.
func NewService(records RecordCreator, opts ...ServiceOption) *Service {
	if records == nil {
		panic("checkin: record creator cannot be nil")
	}
	s := &Service{
		records: records,
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish runs the pipeline for one check-in. The publish is cancellable
// between steps: if ctx is cancelled after the address write, the address
// record is retained for reuse and no check-in record is written.
//
// The publisher never retries record writes itself; a failure surfaces
// immediately so the caller can decide (retries with the returned address
// ref avoid duplicate address records).
func (s *Service) Publish(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Step 1: address record, unless the caller supplied one from an
	// earlier attempt.
	var addressRef pds.StrongRef
	if req.AddressRef != nil {
		addressRef = *req.AddressRef
		s.log.Debug("reusing address record", "uri", addressRef.URI)
	} else {
		ref, err := s.records.CreateRecord(ctx, CollectionAddress, "", buildAddressRecord(req.Place))
		if err != nil {
			// Both the pipeline error and the underlying cause stay matchable;
			// the HTTP layer distinguishes auth failures from write failures.
			return nil, fmt.Errorf("%w: %w", ErrAddressWriteFailed, err)
		}
		addressRef = *ref
		s.log.Info("address record created", "uri", addressRef.URI, "place", req.Place.Name)
	}

	// Cancellation point between steps. The address record stays and its
	// ref is surfaced for reuse, exactly like a failed check-in write.
	if err := ctx.Err(); err != nil {
		return &Result{Address: addressRef}, fmt.Errorf("%w: cancelled before checkin write: %w", ErrCheckinWriteFailed, err)
	}

	// Step 2: check-in record embedding the address StrongRef.
	createdAt := syntax.DatetimeNow().String()
	ref, err := s.records.CreateRecord(ctx, CollectionCheckin, "", buildCheckinRecord(req, addressRef, createdAt))
	if err != nil {
		// Surface the reusable address ref alongside the failure so the
		// caller can retry without a duplicate address record.
		return &Result{Address: addressRef}, fmt.Errorf("%w: %w", ErrCheckinWriteFailed, err)
	}

	result := &Result{
		Checkin:   *ref,
		Address:   addressRef,
		CreatedAt: s.now(),
	}
	s.log.Info("checkin published", "uri", result.Checkin.URI, "place", req.Place.Name)

	// Step 3 (optional): best-effort crosspost. Failure here never reverses
	// or blocks the check-in that already succeeded.
	if req.Crosspost && s.crossposter != nil {
		crossRef, crossErr := s.crossposter.Post(ctx, result.Checkin, req.Text, req.Place)
		if crossErr != nil {
			s.log.Warn("crosspost failed, checkin unaffected",
				"checkin", result.Checkin.URI, "error", crossErr)
			result.CrosspostWarning = crossErr
		} else {
			result.Crosspost = crossRef
		}
	}

	return result, nil
}
