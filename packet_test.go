package bili_test

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bili "github.com/matcha-bili/bililive"
)

func encodeRaw(t *testing.T, proto uint16, op, seq uint32, body []byte) []byte {
	t.Helper()
	total := 16 + len(body)
	buf := make([]byte, total)
	binary.BigEndian.PutUint32(buf[0:4], uint32(total))
	binary.BigEndian.PutUint16(buf[4:6], 16)
	binary.BigEndian.PutUint16(buf[6:8], proto)
	binary.BigEndian.PutUint32(buf[8:12], op)
	binary.BigEndian.PutUint32(buf[12:16], seq)
	copy(buf[16:], body)
	return buf
}

func TestDecode_PlainCommand(t *testing.T) {
	body := []byte(`{"cmd":"LIVE"}`)
	raw := encodeRaw(t, bili.ProtoCommand, bili.OpCommand, 1, body)

	frames, err := bili.Decode(raw)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, bili.OpCommand, frames[0].OpType)
	assert.Equal(t, body, frames[0].Body)
}

func TestDecode_ZlibBundle(t *testing.T) {
	inner := append(
		encodeRaw(t, bili.ProtoCommand, bili.OpCommand, 1, []byte(`{"cmd":"LIVE"}`)),
		encodeRaw(t, bili.ProtoCommand, bili.OpCommand, 2, []byte(`{"cmd":"PREPARING","roomid":"510"}`))...,
	)

	var compressed bytes.Buffer
	w := zlib.NewWriter(&compressed)
	_, err := w.Write(inner)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	raw := encodeRaw(t, bili.ProtoCommandZlib, bili.OpCommand, 1, compressed.Bytes())

	frames, err := bili.Decode(raw)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Contains(t, string(frames[1].Body), "PREPARING")
}

func TestDecode_BrotliBundle(t *testing.T) {
	inner := encodeRaw(t, bili.ProtoCommand, bili.OpCommand, 1, []byte(`{"cmd":"LIVE"}`))

	var compressed bytes.Buffer
	w := brotli.NewWriter(&compressed)
	_, err := w.Write(inner)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	raw := encodeRaw(t, bili.ProtoCommandBrotli, bili.OpCommand, 1, compressed.Bytes())

	frames, err := bili.Decode(raw)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, `{"cmd":"LIVE"}`, string(frames[0].Body))
}

func TestDecode_TruncatedHeader(t *testing.T) {
	_, err := bili.Decode([]byte{0, 0, 0, 1})
	assert.ErrorIs(t, err, bili.ErrBadHeader)
}

func TestDecode_UndefinedProtocol(t *testing.T) {
	raw := encodeRaw(t, 99, bili.OpCommand, 1, []byte("x"))
	_, err := bili.Decode(raw)
	assert.ErrorIs(t, err, bili.ErrUndefinedMsg)
}

func TestDecode_ConcatenatedFramesKeepOrder(t *testing.T) {
	raw := append(
		encodeRaw(t, bili.ProtoSpecial, bili.OpCertificateResp, 1, nil),
		encodeRaw(t, bili.ProtoSpecial, bili.OpHeartbeatReply, 1, []byte{0, 0, 1, 0})...,
	)

	frames, err := bili.Decode(raw)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, bili.OpCertificateResp, frames[0].OpType)
	assert.Equal(t, bili.OpHeartbeatReply, frames[1].OpType)
}

func TestDecode_ZlibBundleOfControlFrames(t *testing.T) {
	inner := append(
		encodeRaw(t, bili.ProtoCommand, bili.OpHeartbeatReply, 1, nil),
		encodeRaw(t, bili.ProtoCommand, bili.OpCertificateResp, 1, nil)...,
	)

	var compressed bytes.Buffer
	w := zlib.NewWriter(&compressed)
	_, err := w.Write(inner)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	raw := encodeRaw(t, bili.ProtoCommandZlib, bili.OpCommand, 1, compressed.Bytes())

	frames, err := bili.Decode(raw)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, bili.OpHeartbeatReply, frames[0].OpType)
	assert.Equal(t, bili.OpCertificateResp, frames[1].OpType)
}

func TestDecode_BundleFollowedByPlainFrameKeepsWireOrder(t *testing.T) {
	inner := append(
		encodeRaw(t, bili.ProtoCommand, bili.OpCommand, 1, []byte(`{"cmd":"FIRST"}`)),
		encodeRaw(t, bili.ProtoCommand, bili.OpCommand, 2, []byte(`{"cmd":"SECOND"}`))...,
	)

	var compressed bytes.Buffer
	w := zlib.NewWriter(&compressed)
	_, err := w.Write(inner)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	raw := append(
		encodeRaw(t, bili.ProtoCommandZlib, bili.OpCommand, 1, compressed.Bytes()),
		encodeRaw(t, bili.ProtoCommand, bili.OpCommand, 3, []byte(`{"cmd":"THIRD"}`))...,
	)

	frames, err := bili.Decode(raw)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Contains(t, string(frames[0].Body), "FIRST")
	assert.Contains(t, string(frames[1].Body), "SECOND")
	assert.Contains(t, string(frames[2].Body), "THIRD")
}

func TestEncodeLogin_HeaderLayout(t *testing.T) {
	frame := bili.EncodeLogin(510, 42, "token123")

	require.GreaterOrEqual(t, len(frame), 16)
	assert.Equal(t, uint32(len(frame)), binary.BigEndian.Uint32(frame[0:4]))
	assert.Equal(t, uint16(0x0010), binary.BigEndian.Uint16(frame[4:6]))
	assert.Equal(t, uint16(0x0001), binary.BigEndian.Uint16(frame[6:8]))
	assert.Equal(t, uint32(0x00000007), binary.BigEndian.Uint32(frame[8:12]))
	assert.Equal(t, uint32(0x00000001), binary.BigEndian.Uint32(frame[12:16]))

	frames, err := bili.Decode(frame)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, bili.OpCertificate, frames[0].OpType)
	assert.Contains(t, string(frames[0].Body), "token123")
	assert.Contains(t, string(frames[0].Body), `"roomid":510`)
}

func TestEncodeLogin_AnonymousUIDIsNull(t *testing.T) {
	frame := bili.EncodeLogin(510, 0, "token123")
	assert.Contains(t, string(frame[16:]), `"uid":null`)
}

func TestEncodeHeartbeat_ExactBytes(t *testing.T) {
	want := []byte{
		0x00, 0x00, 0x00, 0x1F, 0x00, 0x10, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x01,
		'[', 'o', 'b', 'j', 'e', 'c', 't', ' ', 'O', 'b', 'j', 'e', 'c', 't', ']',
	}

	frame := bili.EncodeHeartbeat()
	require.Len(t, frame, 31)
	assert.Equal(t, want, frame)
}
