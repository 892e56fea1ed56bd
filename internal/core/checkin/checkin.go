package checkin

import (
	"fmt"
	"time"

	"github.com/rivo/uniseg"

	"Anchor/internal/atproto/pds"
)

// Record collections (the collection NSID is the record's type tag).
const (
	CollectionAddress = "community.lexicon.location.address"
	CollectionCheckin = "app.dropanchor.checkin"
)

// maxTextGraphemes bounds check-in message length. Counted in grapheme
// clusters, not bytes, so emoji-heavy messages aren't over-penalized.
const maxTextGraphemes = 1000

// Place is the venue being checked into, as resolved by the external place
// search. URL is the place's canonical page (e.g. its OpenStreetMap URL),
// used by the crosspost link facet.
type Place struct {
	Name       string `json:"name"`
	Street     string `json:"street,omitempty"`
	Locality   string `json:"locality,omitempty"`
	Region     string `json:"region,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	URL        string `json:"url,omitempty"`
}

// Coordinates is the check-in location.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ImageRef is a blob reference previously uploaded to the PDS. Upload
// itself happens outside the publisher.
type ImageRef struct {
	Type     string            `json:"$type"`
	Ref      map[string]string `json:"ref"`
	MimeType string            `json:"mimeType"`
	Size     int               `json:"size"`
}

// Request describes one check-in publish.
type Request struct {
	Text        string
	Place       Place
	Coordinates Coordinates
	Image       *ImageRef

	// AddressRef, when set, skips the address write and reuses an address
	// record published by an earlier attempt. Prevents duplicate address
	// records when retrying a failed check-in write.
	AddressRef *pds.StrongRef

	// Crosspost opts in to a best-effort social feed post after the
	// check-in lands.
	Crosspost bool
}

// Result is the outcome of a publish. CrosspostWarning carries a crosspost
// failure without invalidating the check-in itself.
type Result struct {
	Checkin   pds.StrongRef
	Address   pds.StrongRef
	CreatedAt time.Time

	Crosspost        *pds.StrongRef
	CrosspostWarning error
}

// Validate checks the request before any network call.
func (r *Request) Validate() error {
	if r.Text == "" {
		return fmt.Errorf("%w: text is required", ErrValidation)
	}
	if uniseg.GraphemeClusterCount(r.Text) > maxTextGraphemes {
		return fmt.Errorf("%w: text exceeds %d graphemes", ErrValidation, maxTextGraphemes)
	}
	if r.AddressRef == nil && r.Place.Name == "" {
		return fmt.Errorf("%w: place name is required", ErrValidation)
	}
	if r.AddressRef != nil && (r.AddressRef.URI == "" || r.AddressRef.CID == "") {
		return fmt.Errorf("%w: addressRef must carry both uri and cid", ErrValidation)
	}
	if r.Coordinates.Latitude < -90 || r.Coordinates.Latitude > 90 {
		return fmt.Errorf("%w: latitude out of range: %f", ErrValidation, r.Coordinates.Latitude)
	}
	if r.Coordinates.Longitude < -180 || r.Coordinates.Longitude > 180 {
		return fmt.Errorf("%w: longitude out of range: %f", ErrValidation, r.Coordinates.Longitude)
	}
	return nil
}

// buildAddressRecord produces the community.lexicon.location.address value.
// Immutable once published: the check-in references it by content hash.
func buildAddressRecord(place Place) map[string]any {
	record := map[string]any{
		"$type": CollectionAddress,
		"name":  place.Name,
	}
	if place.Street != "" {
		record["street"] = place.Street
	}
	if place.Locality != "" {
		record["locality"] = place.Locality
	}
	if place.Region != "" {
		record["region"] = place.Region
	}
	if place.Country != "" {
		record["country"] = place.Country
	}
	if place.PostalCode != "" {
		record["postalCode"] = place.PostalCode
	}
	return record
}

// buildCheckinRecord produces the app.dropanchor.checkin value embedding
// the address StrongRef.
func buildCheckinRecord(req Request, addressRef pds.StrongRef, createdAt string) map[string]any {
	record := map[string]any{
		"$type":     CollectionCheckin,
		"text":      req.Text,
		"createdAt": createdAt,
		"addressRef": map[string]any{
			"uri": addressRef.URI,
			"cid": addressRef.CID,
		},
		"coordinates": map[string]any{
			"latitude":  req.Coordinates.Latitude,
			"longitude": req.Coordinates.Longitude,
		},
	}
	if req.Image != nil {
		record["image"] = req.Image
	}
	return record
}
