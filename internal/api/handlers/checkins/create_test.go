package checkins

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Anchor/internal/api/middleware"
	"Anchor/internal/atproto/pds"
	"Anchor/internal/core/checkin"
)

type fakeCreator struct {
	errByColl map[string]error
	seq       int
}

func (c *fakeCreator) CreateRecord(ctx context.Context, collection, rkey string, record any) (*pds.StrongRef, error) {
	if err := c.errByColl[collection]; err != nil {
		return nil, err
	}
	c.seq++
	return &pds.StrongRef{
		URI: fmt.Sprintf("at://did:plc:alice123/%s/3k44rec%05d", collection, c.seq),
		CID: fmt.Sprintf("bafyrei-fake-%d", c.seq),
	}, nil
}

func postCheckin(t *testing.T, handler *CreateHandler, body string, withDID bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/checkins", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if withDID {
		ctx := context.WithValue(req.Context(), middleware.UserDIDKey, "did:plc:alice123")
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	handler.HandleCreate(rec, req)
	return rec
}

const validBody = `{
	"text": "Great climbing session!",
	"place": {"name": "Klimmuur Centraal", "url": "https://osm.example/node/42"},
	"coordinates": {"latitude": 52.0907, "longitude": 5.1214}
}`

func TestHandleCreate_Success(t *testing.T) {
	handler := NewCreateHandler(checkin.NewService(&fakeCreator{}))

	rec := postCheckin(t, handler, validBody, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		Checkin pds.StrongRef `json:"checkin"`
		Address pds.StrongRef `json:"address"`
		RKey    string        `json:"rkey"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Contains(t, body.Checkin.URI, "app.dropanchor.checkin")
	assert.Contains(t, body.Address.URI, "community.lexicon.location.address")
	require.NotEmpty(t, body.RKey)
	assert.True(t, strings.HasSuffix(body.Checkin.URI, "/"+body.RKey))
}

func TestHandleCreate_NoIdentity(t *testing.T) {
	handler := NewCreateHandler(checkin.NewService(&fakeCreator{}))

	rec := postCheckin(t, handler, validBody, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleCreate_InvalidBody(t *testing.T) {
	handler := NewCreateHandler(checkin.NewService(&fakeCreator{}))

	rec := postCheckin(t, handler, `not json`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreate_ValidationFailure(t *testing.T) {
	handler := NewCreateHandler(checkin.NewService(&fakeCreator{}))

	rec := postCheckin(t, handler, `{"text":"","place":{"name":"x"}}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "InvalidRequest")
}

func TestHandleCreate_CheckinWriteFailureReturnsAddressRef(t *testing.T) {
	creator := &fakeCreator{errByColl: map[string]error{
		checkin.CollectionCheckin: fmt.Errorf("boom"),
	}}
	handler := NewCreateHandler(checkin.NewService(creator))

	rec := postCheckin(t, handler, validBody, true)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var body struct {
		Error      string         `json:"error"`
		AddressRef *pds.StrongRef `json:"addressRef"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "CheckinWriteFailed", body.Error)
	require.NotNil(t, body.AddressRef, "response must carry the reusable address ref")
	assert.Contains(t, body.AddressRef.URI, "community.lexicon.location.address")
}

func TestHandleCreate_AddressWriteFailure(t *testing.T) {
	creator := &fakeCreator{errByColl: map[string]error{
		checkin.CollectionAddress: fmt.Errorf("boom"),
	}}
	handler := NewCreateHandler(checkin.NewService(creator))

	rec := postCheckin(t, handler, validBody, true)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "AddressWriteFailed")
}
