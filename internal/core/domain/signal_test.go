package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignalType_CaseInsensitive(t *testing.T) {
	cases := map[string]SignalType{
		"offer":  SignalOffer,
		"Offer":  SignalOffer,
		"ANSWER": SignalAnswer,
		" ice ":  SignalICE,
	}
	for in, want := range cases {
		got, err := ParseSignalType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseSignalType("candidate")
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestSignalEvent_DecodeKeepsPayloadVerbatim(t *testing.T) {
	raw := `{"type":"offer","roomId":"42","sender":"7","target":"9","payload":{"sdp":"v=0\r\n"}}`

	var ev SignalEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))

	assert.Equal(t, SignalOffer, ev.Type)
	assert.Equal(t, RoomID(42), ev.RoomID)
	assert.Equal(t, "9", ev.Target)
	assert.JSONEq(t, `{"sdp":"v=0\r\n"}`, string(ev.Payload))
	assert.NoError(t, ev.Validate())
}

func TestSignalEvent_UnknownTypeRejected(t *testing.T) {
	var ev SignalEvent
	err := json.Unmarshal([]byte(`{"type":"bye","roomId":1}`), &ev)
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestChatEvent_Validate(t *testing.T) {
	ev := ChatEvent{Type: "chat", RoomID: 3}
	ev.Normalize()
	assert.Equal(t, ChatEventChat, ev.Type)
	assert.NotZero(t, ev.Timestamp)
	assert.NoError(t, ev.Validate())

	assert.ErrorIs(t, ChatEvent{Type: ChatEventChat}.Validate(), ErrInvalidEvent)
	assert.ErrorIs(t, ChatEvent{RoomID: 3}.Validate(), ErrInvalidEvent)
}

func TestRoomChannel_RoundTrip(t *testing.T) {
	ch := RoomChannel(17)
	assert.Equal(t, "chat.room.17", ch)

	id, err := RoomIDFromChannel(ch)
	require.NoError(t, err)
	assert.Equal(t, RoomID(17), id)

	_, err = RoomIDFromChannel("stream:17")
	assert.Error(t, err)
}
