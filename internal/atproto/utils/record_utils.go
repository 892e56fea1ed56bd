package utils

import (
	"strings"
	"time"
)

// ExtractRKeyFromURI extracts the record key from an AT-URI
// Format: at://did/collection/rkey -> rkey
func ExtractRKeyFromURI(uri string) string {
	parts := strings.Split(uri, "/")
	if len(parts) >= 4 {
		return parts[len(parts)-1]
	}
	return ""
}

// ExtractCollectionFromURI extracts the collection from an AT-URI
// Format: at://did/collection/rkey -> collection
//
// Returns the collection NSID (e.g. "app.dropanchor.checkin"), or an empty
// string if the URI is malformed. Callers should validate the return value
// before using it.
func ExtractCollectionFromURI(uri string) string {
	withoutScheme := strings.TrimPrefix(uri, "at://")
	parts := strings.Split(withoutScheme, "/")
	if len(parts) >= 2 {
		return parts[1]
	}
	return ""
}

// ExtractDIDFromURI extracts the repository DID from an AT-URI
// Format: at://did/collection/rkey -> did
func ExtractDIDFromURI(uri string) string {
	withoutScheme := strings.TrimPrefix(uri, "at://")
	parts := strings.Split(withoutScheme, "/")
	if len(parts) >= 1 && strings.HasPrefix(parts[0], "did:") {
		return parts[0]
	}
	return ""
}

// ParseCreatedAt extracts and parses the createdAt timestamp from an
// atProto record value. Falls back to time.Now() if the field is missing
// or invalid.
func ParseCreatedAt(record map[string]interface{}) time.Time {
	if record == nil {
		return time.Now()
	}

	createdAtStr, ok := record["createdAt"].(string)
	if !ok || createdAtStr == "" {
		return time.Now()
	}

	// atProto uses RFC3339 format for datetime fields
	createdAt, err := time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return time.Now()
	}

	return createdAt
}
