package crosspost

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bluesky-social/indigo/atproto/syntax"

	"Anchor/internal/atproto/pds"
	"Anchor/internal/core/checkin"
)

// RecordCreator is the slice of the PDS client the adapter needs. The
// crosspost goes to the user's own PDS through the same session as the
// check-in (home-PDS model): one auth domain, one token.
type RecordCreator interface {
	CreateRecord(ctx context.Context, collection string, rkey string, record any) (*pds.StrongRef, error)
}

// Service posts feed entries referencing published check-ins.
type Service struct {
	records RecordCreator
	log     *slog.Logger
}

var _ checkin.Crossposter = (*Service)(nil)

// NewService creates a crosspost adapter.
func NewService(records RecordCreator, log *slog.Logger) *Service {
	if records == nil {
		panic("crosspost: record creator cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{records: records, log: log}
}

// Post writes an app.bsky.feed.post whose text names the place, with a
// link facet over the place name pointing at its canonical URL and a
// record embed back-referencing the check-in.
func (s *Service) Post(ctx context.Context, checkinRef pds.StrongRef, message string, place checkin.Place) (*pds.StrongRef, error) {
	text := buildPostText(message, place)
	if err := validatePostText(text); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPostFailed, err)
	}

	record := map[string]any{
		"$type":     CollectionFeedPost,
		"text":      text,
		"createdAt": syntax.DatetimeNow().String(),
	}

	if place.URL != "" && place.Name != "" {
		facet, err := linkFacet(text, place.Name, place.URL)
		if err != nil {
			// A missing facet degrades the post, it doesn't block it.
			s.log.Warn("skipping link facet", "place", place.Name, "error", err)
		} else {
			record["facets"] = []Facet{*facet}
		}
	}

	if checkinRef.URI != "" && checkinRef.CID != "" {
		record["embed"] = map[string]any{
			"$type": embedRecordType,
			"record": map[string]any{
				"uri": checkinRef.URI,
				"cid": checkinRef.CID,
			},
		}
	}

	ref, err := s.records.CreateRecord(ctx, CollectionFeedPost, "", record)
	if err != nil {
		// Keep the transport cause matchable so callers can tell a network
		// blip from a server rejection in the surfaced warning.
		return nil, fmt.Errorf("%w: %w", ErrPostFailed, err)
	}

	s.log.Info("crosspost published", "uri", ref.URI, "checkin", checkinRef.URI)
	return ref, nil
}

// buildPostText composes the feed post body. The place name is always
// present so the facet has something to anchor to.
func buildPostText(message string, place checkin.Place) string {
	if place.Name == "" {
		return message
	}
	if message == "" {
		return fmt.Sprintf("Dropped anchor at %s", place.Name)
	}
	return fmt.Sprintf("%s\n\nDropped anchor at %s", message, place.Name)
}
