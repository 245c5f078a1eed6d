package outbox

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockledger-backend/pkg/enums"
)

func TestEnvelopeRoundTripsThroughDecode(t *testing.T) {
	tenantID := uuid.New()
	env, err := newEnvelope(DomainEvent{
		TenantID:  tenantID,
		EventType: enums.EventStockMoved,
		Data:      map[string]int{"delta": -3},
	})
	require.NoError(t, err)
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.False(t, env.OccurredAt.IsZero())

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(raw, tenantID)
	require.NoError(t, err)
	assert.Equal(t, env.EventID, decoded.EventID)
	assert.JSONEq(t, `{"delta":-3}`, string(decoded.Data))
}

func TestDecodeEnvelopeRejects(t *testing.T) {
	tenantID := uuid.New()
	encode := func(env PayloadEnvelope) []byte {
		raw, err := json.Marshal(env)
		require.NoError(t, err)
		return raw
	}

	_, err := DecodeEnvelope(encode(PayloadEnvelope{Version: EnvelopeVersion + 1, TenantID: tenantID, Data: json.RawMessage(`{}`)}), tenantID)
	assert.ErrorIs(t, err, ErrEnvelopeVersion)

	_, err = DecodeEnvelope(encode(PayloadEnvelope{Version: 1, TenantID: uuid.New(), Data: json.RawMessage(`{}`)}), tenantID)
	assert.ErrorIs(t, err, ErrEnvelopeTenant)

	_, err = DecodeEnvelope(encode(PayloadEnvelope{Version: 1, TenantID: tenantID, Data: json.RawMessage(`null`)}), tenantID)
	assert.ErrorIs(t, err, ErrEnvelopeData)

	_, err = DecodeEnvelope([]byte("{"), tenantID)
	assert.Error(t, err)
}
