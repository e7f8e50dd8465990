// Package session implements the connection acceptor and session worker
// pool of spec.md §4.6: decoding fixed-width connection and request
// frames, the bounded-buffer handoff between the one acceptor and the S
// session workers, and the per-session SUBSCRIBE/UNSUBSCRIBE command
// loop with its (deliberately asymmetric) ack-byte polarity.
package session

import "bytes"

// Opcodes, per spec.md §6.
const (
	OpConnect      byte = 1
	OpDisconnect   byte = 2
	OpSubscribe    byte = 3
	OpUnsubscribe  byte = 4
)

// Status bytes for response frames.
const (
	StatusSuccess byte = '0'
	StatusFailure byte = '1'
)

// subscribeAck and unsubscribeAck carry the inverted ack polarity
// spec.md §9 requires preserved verbatim: '1' means subscribed
// successfully, but '0' means unsubscribed successfully.
const (
	subscribeAckSuccess   byte = '1'
	subscribeAckFailure   byte = '0'
	unsubscribeAckSuccess byte = '0'
	unsubscribeAckFailure byte = '1'
)

// ConnectFrame is one decoded connection request: the three pipe paths a
// client wants the server to use for its session.
type ConnectFrame struct {
	RequestPath      string
	ResponsePath     string
	NotificationPath string
}

// ConnectFrameSize returns 1 + 3*maxPathLen, the wire size of a
// connection frame (spec.md §6).
func ConnectFrameSize(maxPathLen int) int {
	return 1 + 3*maxPathLen
}

// DecodeConnectFrame parses a raw connection frame. raw must be exactly
// ConnectFrameSize(maxPathLen) bytes and its first byte must be
// OpConnect.
func DecodeConnectFrame(raw []byte, maxPathLen int) (ConnectFrame, bool) {
	if len(raw) != ConnectFrameSize(maxPathLen) || raw[0] != OpConnect {
		return ConnectFrame{}, false
	}
	body := raw[1:]
	req := unpad(body[0*maxPathLen : 1*maxPathLen])
	resp := unpad(body[1*maxPathLen : 2*maxPathLen])
	notif := unpad(body[2*maxPathLen : 3*maxPathLen])
	return ConnectFrame{RequestPath: req, ResponsePath: resp, NotificationPath: notif}, true
}

// EncodeConnectFrame is the client-side counterpart, used by kvclient.
func EncodeConnectFrame(f ConnectFrame, maxPathLen int) []byte {
	raw := make([]byte, ConnectFrameSize(maxPathLen))
	raw[0] = OpConnect
	copy(raw[1+0*maxPathLen:], f.RequestPath)
	copy(raw[1+1*maxPathLen:], f.ResponsePath)
	copy(raw[1+2*maxPathLen:], f.NotificationPath)
	return raw
}

// EncodeConnectAck builds the 2-byte connect response: opcode plus
// '0'/'1'.
func EncodeConnectAck(success bool) []byte {
	return []byte{OpConnect, statusByte(success)}
}

// EncodeDisconnectAck builds the 2-byte disconnect response.
func EncodeDisconnectAck(success bool) []byte {
	return []byte{OpDisconnect, statusByte(success)}
}

// EncodeSubscribeAck builds SUBSCRIBE's response using its inverted
// polarity: existed==true ('1') means the subscribe succeeded.
func EncodeSubscribeAck(existed bool) []byte {
	if existed {
		return []byte{OpSubscribe, subscribeAckSuccess}
	}
	return []byte{OpSubscribe, subscribeAckFailure}
}

// EncodeUnsubscribeAck builds UNSUBSCRIBE's response: existed==true
// ('0') means the unsubscribe succeeded.
func EncodeUnsubscribeAck(existed bool) []byte {
	if existed {
		return []byte{OpUnsubscribe, unsubscribeAckSuccess}
	}
	return []byte{OpUnsubscribe, unsubscribeAckFailure}
}

func statusByte(success bool) byte {
	if success {
		return StatusSuccess
	}
	return StatusFailure
}

func unpad(b []byte) string {
	return string(bytes.TrimRight(b, "\x00"))
}

func pad(s string, width int) []byte {
	out := make([]byte, width)
	copy(out, s)
	return out
}
