package checkin

import (
	"context"

	"Anchor/internal/atproto/pds"
)

// RecordCreator is the slice of the PDS client the publisher needs.
type RecordCreator interface {
	CreateRecord(ctx context.Context, collection string, rkey string, record any) (*pds.StrongRef, error)
}

// Crossposter posts a social feed entry referencing a published check-in.
// Implementations are best-effort: the publisher reports their failure as a
// warning, never as a publish failure.
type Crossposter interface {
	Post(ctx context.Context, checkinRef pds.StrongRef, text string, place Place) (*pds.StrongRef, error)
}
