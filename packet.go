package bili

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/andybalholm/brotli"
)

// Wire protocol versions.
const (
	ProtoCommand       uint16 = 0 // plain JSON command
	ProtoSpecial       uint16 = 1 // heartbeat / auth control frame
	ProtoCommandZlib   uint16 = 2 // zlib-compressed bundle of frames
	ProtoCommandBrotli uint16 = 3 // brotli-compressed bundle of frames
)

// Wire operation codes.
const (
	OpHeartbeat       uint32 = 2
	OpHeartbeatReply  uint32 = 3
	OpCommand         uint32 = 5
	OpCertificate     uint32 = 7
	OpCertificateResp uint32 = 8
)

const frameHeaderSize = 16

// Frame is one decoded, already-decompressed unit from the wire.
type Frame struct {
	Protocol uint16
	OpType   uint32
	Sequence uint32
	Body     []byte
}

// EncodeLogin builds the client auth frame sent immediately after the
// WebSocket handshake completes.
func EncodeLogin(roomID int64, uid int64, token string) []byte {
	type loginBody struct {
		UID      *int64 `json:"uid"`
		RoomID   int64  `json:"roomid"`
		Protover int    `json:"protover"`
		Platform string `json:"platform"`
		Type     int    `json:"type"`
		Key      string `json:"key"`
	}
	var u *int64
	if uid > 0 {
		u = &uid
	}
	payload, err := json.Marshal(loginBody{UID: u, RoomID: roomID, Protover: 2, Platform: "web", Type: 2, Key: token})
	if err != nil {
		panic("bili: marshal login frame: " + err.Error())
	}
	return encodeFrame(ProtoSpecial, OpCertificate, 1, payload)
}

// EncodeHeartbeat builds a client heartbeat frame.
func EncodeHeartbeat() []byte {
	return encodeFrame(ProtoSpecial, OpHeartbeat, 1, []byte("[object Object]"))
}

func encodeFrame(proto uint16, op, seq uint32, body []byte) []byte {
	total := uint32(frameHeaderSize) + uint32(len(body))
	buf := make([]byte, total)
	binary.BigEndian.PutUint32(buf[0:4], total)
	binary.BigEndian.PutUint16(buf[4:6], frameHeaderSize)
	binary.BigEndian.PutUint16(buf[6:8], proto)
	binary.BigEndian.PutUint32(buf[8:12], op)
	binary.BigEndian.PutUint32(buf[12:16], seq)
	copy(buf[frameHeaderSize:], body)
	return buf
}

// Decode parses a raw WebSocket message into zero or more Frames. A message
// can carry a chain of nested zlib/brotli bundles, each itself containing
// more framed messages; rather than recursing per nesting level, the cursor
// switches to the inflated bytes and the outer remainder is parked on an
// explicit resume stack, so emitted frames keep exact wire order with a
// bounded call stack.
func Decode(data []byte) ([]Frame, error) {
	var frames []Frame
	var resume [][]byte
	buf := data

	for {
		for len(buf) > 0 {
			if len(buf) < frameHeaderSize {
				return nil, ErrBadHeader
			}
			total := binary.BigEndian.Uint32(buf[0:4])
			headerLen := binary.BigEndian.Uint16(buf[4:6])
			if total < frameHeaderSize || int(total) > len(buf) || int(headerLen) > int(total) {
				return nil, ErrBadHeader
			}
			proto := binary.BigEndian.Uint16(buf[6:8])
			op := binary.BigEndian.Uint32(buf[8:12])
			seq := binary.BigEndian.Uint32(buf[12:16])
			body := buf[headerLen:total]

			switch proto {
			case ProtoCommandZlib, ProtoCommandBrotli:
				inflate := inflateZlib
				if proto == ProtoCommandBrotli {
					inflate = inflateBrotli
				}
				inflated, err := inflate(body)
				if err != nil {
					return nil, ErrInflate
				}
				if rest := buf[total:]; len(rest) > 0 {
					resume = append(resume, rest)
				}
				buf = inflated
			case ProtoCommand, ProtoSpecial:
				frames = append(frames, Frame{Protocol: proto, OpType: op, Sequence: seq, Body: body})
				buf = buf[total:]
			default:
				return nil, ErrUndefinedMsg
			}
		}

		if len(resume) == 0 {
			return frames, nil
		}
		buf = resume[len(resume)-1]
		resume = resume[:len(resume)-1]
	}
}

func inflateZlib(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func inflateBrotli(data []byte) ([]byte, error) {
	return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
}
