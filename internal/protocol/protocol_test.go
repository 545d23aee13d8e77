package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle/internal/protocol"
)

func TestDecode_RejectsMalformedInput(t *testing.T) {
	_, err := protocol.Decode([]byte(`not json`))
	assert.Error(t, err)

	_, err = protocol.Decode([]byte(`{"cid":"1"}`))
	assert.Error(t, err, "an envelope without a type is meaningless")
}

func TestEncode_Decode_Roundtrip(t *testing.T) {
	data, err := protocol.Encode(protocol.CallMessageSend, "cid-7", protocol.SendRequest{
		Text:        "hello",
		ClientMsgID: "cmid-1",
	})
	require.NoError(t, err)

	env, err := protocol.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, protocol.CallMessageSend, env.Type)
	assert.Equal(t, "cid-7", env.CID)

	var req protocol.SendRequest
	require.NoError(t, env.Bind(&req))
	assert.Equal(t, "hello", req.Text)
	assert.Equal(t, "cmid-1", req.ClientMsgID)
}

func TestBind_MissingPayload(t *testing.T) {
	env, err := protocol.Decode([]byte(`{"type":"room:join"}`))
	require.NoError(t, err)

	var req protocol.JoinRequest
	assert.Error(t, env.Bind(&req))
}

func TestFrame_TargetingRoundtrip(t *testing.T) {
	event, err := protocol.Encode(protocol.EventMemberKicked, "", protocol.MemberKicked{MemberID: "m-2"})
	require.NoError(t, err)

	raw, err := protocol.EncodeFrame(event, "m-2", true, "c-new")
	require.NoError(t, err)

	frame, err := protocol.DecodeFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, "m-2", frame.Target)
	assert.True(t, frame.Disconnect)
	assert.Equal(t, "c-new", frame.SkipConn)

	env, err := protocol.Decode(frame.Event)
	require.NoError(t, err)
	assert.Equal(t, protocol.EventMemberKicked, env.Type)
}

func TestFrame_BroadcastHasNoTargeting(t *testing.T) {
	event, err := protocol.Encode(protocol.EventRoomStarted, "", protocol.RoomStarted{Status: "chatting"})
	require.NoError(t, err)

	raw, err := protocol.EncodeFrame(event, "", false, "")
	require.NoError(t, err)

	frame, err := protocol.DecodeFrame(raw)
	require.NoError(t, err)
	assert.Empty(t, frame.Target)
	assert.False(t, frame.Disconnect)
	assert.Empty(t, frame.SkipConn)
}
