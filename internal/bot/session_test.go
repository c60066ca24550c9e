package bot

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeSessionEmptyPayload(t *testing.T) {
	s := decodeSession(nil)
	require.Equal(t, StateIdle, s.State)

	s = decodeSession([]byte{})
	require.Equal(t, StateIdle, s.State)
}

func TestDecodeSessionCorruptPayload(t *testing.T) {
	s := decodeSession([]byte(`{"state": "entering_title", "draft": {`))
	require.Equal(t, StateIdle, s.State, "corrupt payload resets the dialog instead of wedging it")
	require.Nil(t, s.Draft)
}

func TestDecodeSessionMissingState(t *testing.T) {
	s := decodeSession([]byte(`{"email": "a@b.c"}`))
	require.Equal(t, StateIdle, s.State)
}

func TestSessionRoundTrip(t *testing.T) {
	in := &Session{
		State:  StateConfirmingRequest,
		Action: ActionNewRequest,
		Options: []Option{
			{Value: "PRJ-001", Label: "PRJ-001 — Котельная"},
		},
		Draft: &RequestDraft{
			Project:     "PRJ-001",
			Site:        "S-1",
			Title:       "Leaking pipe",
			Priority:    "Medium",
			Description: "",
		},
	}

	raw, err := encodeSession(in)
	require.NoError(t, err)

	out := decodeSession(raw)
	require.Equal(t, in.State, out.State)
	require.Equal(t, in.Action, out.Action)
	require.Equal(t, in.Options, out.Options)
	require.Equal(t, in.Draft, out.Draft)
	require.Nil(t, out.Survey)
}

func TestSessionRoundTripSurveyCursor(t *testing.T) {
	in := &Session{
		State:  StateAwaitingSurveyUploads,
		Survey: &SurveyCursor{Project: "PRJ-001", Site: "S-1", Section: "Detectors"},
	}

	raw, err := encodeSession(in)
	require.NoError(t, err)

	out := decodeSession(raw)
	require.Equal(t, in.State, out.State)
	require.Equal(t, in.Survey, out.Survey)
}

func TestDecodeSessionIgnoresUnknownFields(t *testing.T) {
	s := decodeSession([]byte(`{"state": "awaiting_code", "email": "a@b.c", "legacy_field": 7}`))
	require.Equal(t, StateAwaitingCode, s.State)
	require.Equal(t, "a@b.c", s.Email)
}
