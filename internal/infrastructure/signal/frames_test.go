package signal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinesync/internal/core/domain"
)

func TestParseFrame(t *testing.T) {
	f, err := parseFrame([]byte(`{"destination":"/room/12/chat","body":{"type":"chat","roomId":"12","content":"hi"}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.RoomID(12), f.roomID)
	assert.Equal(t, actionChat, f.action)
	assert.Equal(t, "chat", f.kind)

	invalid := []string{
		`not json`,
		`{"destination":"/room/12/dance","body":{"type":"CHAT","roomId":12}}`,
		`{"destination":"/rooms/12/chat","body":{"type":"CHAT","roomId":12}}`,
		`{"destination":"/room/abc/chat","body":{"type":"CHAT","roomId":12}}`,
		`{"destination":"/room/12/chat"}`,
		`{"destination":"/room/12/chat","body":{"roomId":12}}`,
		`{"destination":"/room/12/chat","body":{"type":"CHAT"}}`,
		`{"destination":"/room/12/chat","body":{"type":"CHAT","roomId":13}}`,
	}
	for _, raw := range invalid {
		_, err := parseFrame([]byte(raw))
		var perr *protocolError
		assert.True(t, errors.As(err, &perr), raw)
		assert.ErrorIs(t, err, domain.ErrInvalidEvent, raw)
	}
}
