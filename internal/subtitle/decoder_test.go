package subtitle

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicelink/internal/domain"
)

func frameWith(t *testing.T, magic uint32, payload []byte, declared uint32) []byte {
	t.Helper()
	frame := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(frame[0:4], magic)
	binary.BigEndian.PutUint32(frame[4:8], declared)
	copy(frame[8:], payload)
	return frame
}

func TestDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	batch := domain.SubtitleBatch{
		Type: "subtitle",
		Data: []domain.SubtitleUnit{
			{Text: "hello there", Language: "en", UserID: "user1", Sequence: 3, Definite: true, Paragraph: true},
			{Text: "partial", Language: "en", UserID: "bot01", Sequence: 1},
		},
	}

	frame, err := Encode(batch)
	require.NoError(t, err)

	decoded := Decode(frame)
	require.NotNil(t, decoded)
	assert.Equal(t, batch, *decoded)
}

func TestDecodeRejectsShortBuffers(t *testing.T) {
	t.Parallel()

	for size := 0; size < 8; size++ {
		assert.Nil(t, Decode(make([]byte, size)), "size %d", size)
	}
}

func TestDecodeRejectsWrongMagic(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"type":"subtitle","data":[]}`)
	frame := frameWith(t, 0x73756277, payload, uint32(len(payload)))
	assert.Nil(t, Decode(frame))
}

func TestDecodeRejectsLengthMismatch(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"type":"subtitle","data":[]}`)
	assert.Nil(t, Decode(frameWith(t, 0x73756276, payload, uint32(len(payload))+1)))
	assert.Nil(t, Decode(frameWith(t, 0x73756276, payload, uint32(len(payload))-1)))
}

func TestDecodeZeroLengthPayloadYieldsNothing(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Decode(frameWith(t, 0x73756276, nil, 0)))
}

func TestDecodeRejectsMalformedPayloads(t *testing.T) {
	t.Parallel()

	cases := map[string][]byte{
		"invalid json":     []byte(`{"type":`),
		"wrong type":       []byte(`{"type":"heartbeat","data":[]}`),
		"data not a list":  []byte(`{"type":"subtitle","data":"oops"}`),
		"data missing":     []byte(`{"type":"subtitle"}`),
		"data null":        []byte(`{"type":"subtitle","data":null}`),
		"invalid utf8":     {0xff, 0xfe, 0xfd},
		"top-level scalar": []byte(`42`),
	}

	for name, payload := range cases {
		frame := frameWith(t, 0x73756276, payload, uint32(len(payload)))
		assert.Nil(t, Decode(frame), name)
	}
}

func TestDecodeAcceptsEmptyDataList(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"type":"subtitle","data":[]}`)
	decoded := Decode(frameWith(t, 0x73756276, payload, uint32(len(payload))))
	require.NotNil(t, decoded)
	assert.Empty(t, decoded.Data)
}

func TestDecodeHandFramedChineseUnit(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"type":"subtitle","data":[{"text":"你好","language":"zh","userId":"user1","sequence":1,"definite":true,"paragraph":true}]}`)
	frame := append([]byte{0x73, 0x75, 0x62, 0x76}, byte(len(payload)>>24), byte(len(payload)>>16), byte(len(payload)>>8), byte(len(payload)))
	frame = append(frame, payload...)

	decoded := Decode(frame)
	require.NotNil(t, decoded)
	require.Len(t, decoded.Data, 1)

	unit := decoded.Data[0]
	assert.Equal(t, "你好", unit.Text)
	assert.Equal(t, "user1", unit.UserID)
	assert.True(t, unit.CompleteSentence())
}

func TestRoleForUser(t *testing.T) {
	t.Parallel()

	assert.Equal(t, domain.RoleUser, RoleForUser("user1"))
	assert.Equal(t, domain.RoleUser, RoleForUser("alice"))
	assert.Equal(t, domain.RoleAssistant, RoleForUser("bot01"))
	assert.Equal(t, domain.RoleAssistant, RoleForUser("BOT-assistant"))
	assert.Equal(t, domain.RoleUser, RoleForUser("robot"))
}
