package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignatureRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"id":"evt_1"}`)

	header := SignPayload(payload, "whsec_test", now)
	require.NoError(t, VerifySignature(payload, header, "whsec_test", now))
}

func TestVerifySignatureWrongSecret(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"id":"evt_1"}`)

	header := SignPayload(payload, "whsec_test", now)
	assert.ErrorIs(t, VerifySignature(payload, header, "whsec_other", now), ErrInvalidSignature)
}

func TestVerifySignatureTamperedPayload(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	header := SignPayload([]byte(`{"id":"evt_1"}`), "whsec_test", now)
	assert.ErrorIs(t, VerifySignature([]byte(`{"id":"evt_2"}`), header, "whsec_test", now), ErrInvalidSignature)
}

func TestVerifySignatureStaleTimestamp(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"id":"evt_1"}`)

	header := SignPayload(payload, "whsec_test", now.Add(-10*time.Minute))
	assert.ErrorIs(t, VerifySignature(payload, header, "whsec_test", now), ErrSignatureExpired)
}

func TestVerifySignatureGarbageHeader(t *testing.T) {
	now := time.Now()
	payload := []byte(`{}`)

	for _, header := range []string{"", "t=abc,v1=00", "v1=00", "t=123"} {
		assert.ErrorIs(t, VerifySignature(payload, header, "whsec_test", now), ErrInvalidSignature, header)
	}
}

func TestVerifySignatureMultipleCandidates(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"id":"evt_1"}`)

	// A header carrying an extra bogus v1 still verifies.
	combined := SignPayload(payload, "whsec_test", now) + ",v1=deadbeef"
	require.NoError(t, VerifySignature(payload, combined, "whsec_test", now))
}
