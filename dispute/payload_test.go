package dispute

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePayload_UsesWireKeys(t *testing.T) {
	raw, err := EncodePayload(CreatedPayload{ReasonCode: "FRAUD", StatusCode: "PENDING", TransactionRef: "T1", UserID: "U1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"reason":"FRAUD","status":"PENDING","transactionId":"T1","userId":"U1"}`, string(raw))

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	raw, err = EncodePayload(StatusUpdatedPayload{OldStatus: "PENDING", NewStatus: "RESOLVED", UpdatedAt: at})
	require.NoError(t, err)
	assert.JSONEq(t, `{"oldStatus":"PENDING","newStatus":"RESOLVED","updatedAt":"2024-03-01T10:00:00Z"}`, string(raw))
}

func TestEncodePayload_Nil(t *testing.T) {
	_, err := EncodePayload(nil)
	require.Error(t, err)
}

func TestDecodePayload_UnknownTypeKeepsAttributes(t *testing.T) {
	p, err := DecodePayload("COMMENT_ADDED", []byte(`{"comment":"card was cloned"}`))
	require.NoError(t, err)
	attrs, ok := p.(AttributesPayload)
	require.True(t, ok)
	assert.Equal(t, "COMMENT_ADDED", attrs.EventType())
	assert.Equal(t, "card was cloned", attrs.Attributes["comment"])

	raw, err := EncodePayload(attrs)
	require.NoError(t, err)
	assert.JSONEq(t, `{"comment":"card was cloned"}`, string(raw))
}

func TestDecodePayload_EmptyAndMalformed(t *testing.T) {
	p, err := DecodePayload(EventCreated, nil)
	require.NoError(t, err)
	assert.Equal(t, CreatedPayload{}, p)

	_, err = DecodePayload(EventStatusUpdated, []byte(`{"updatedAt":42}`))
	require.Error(t, err)
}
