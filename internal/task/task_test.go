package task

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	msg := New(KindScrapeNewData, map[string]any{"source": "applicant_data_json"})
	body, err := msg.Encode()
	require.NoError(t, err)

	decoded, err := Decode(body)
	require.NoError(t, err)
	require.Equal(t, KindScrapeNewData, decoded.Kind)
	require.Equal(t, "applicant_data_json", decoded.Payload["source"])
	require.False(t, decoded.TS.IsZero())
}

func TestDecode_RejectsInvalidJSON(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte(`{not-json`))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMalformed))
}

func TestDecode_RejectsMissingKind(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte(`{"payload":{}}`))
	require.True(t, errors.Is(err, ErrMalformed))

	_, err = Decode([]byte(`{"kind":"","payload":{}}`))
	require.True(t, errors.Is(err, ErrMalformed))
}

func TestDecode_RejectsNonObjectPayload(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte(`{"kind":"scrape_new_data","payload":[1,2]}`))
	require.True(t, errors.Is(err, ErrMalformed))
}

func TestDecode_AllowsAbsentOrNullPayload(t *testing.T) {
	t.Parallel()

	msg, err := Decode([]byte(`{"kind":"recompute_analytics"}`))
	require.NoError(t, err)
	require.NotNil(t, msg.Payload)
	require.Empty(t, msg.Payload)

	msg, err = Decode([]byte(`{"kind":"recompute_analytics","payload":null}`))
	require.NoError(t, err)
	require.Empty(t, msg.Payload)
}

func TestDecode_KeepsUnknownKindForDispatch(t *testing.T) {
	t.Parallel()

	msg, err := Decode([]byte(`{"kind":"bogus","payload":{}}`))
	require.NoError(t, err)
	require.Equal(t, Kind("bogus"), msg.Kind)
	require.False(t, msg.Kind.Known())
}
