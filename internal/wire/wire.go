// Package wire implements the little-endian byte encodings assumed by
// the BLE port (see spec §6.2). It has zero I/O — pure byte-slice math —
// so it can be exercised identically by the in-memory fakes and by a
// real platform adapter layered on top of it.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/octorelay/blesync-engine/internal/domain"
)

// EncodePageRequest builds the 8-byte page-request write payload:
// uint32 offset || uint32 count, little-endian.
func EncodePageRequest(offset uint32, count uint32) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], offset)
	binary.LittleEndian.PutUint32(buf[4:8], count)
	return buf
}

// DecodeCount reads the first 4 bytes of a count-read payload as a
// little-endian uint32. The payload may be longer than 4 bytes.
func DecodeCount(payload []byte) (uint32, error) {
	if len(payload) < 4 {
		return 0, fmt.Errorf("wire: count payload too short: got %d bytes, want >= 4", len(payload))
	}
	return binary.LittleEndian.Uint32(payload[0:4]), nil
}

// EncodeAck builds the 4-byte ack write payload.
func EncodeAck(upTo uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, upTo)
	return buf
}

// DecodePageOffsetCount parses an 8-byte page-request payload back into
// its offset and count, mirroring EncodePageRequest. It is the inverse a
// peripheral-side reader of the raw page-request bytes would apply.
func DecodePageOffsetCount(payload []byte) (offset uint32, count uint32, err error) {
	if len(payload) < 8 {
		return 0, 0, fmt.Errorf("wire: page-request payload too short: got %d bytes, want >= 8", len(payload))
	}
	return binary.LittleEndian.Uint32(payload[0:4]), binary.LittleEndian.Uint32(payload[4:8]), nil
}

// ClassifyTransportCode maps a platform GATT status code to the domain
// error taxonomy, per the reference adapter table in spec §6.2. A zero
// code means success and classifies as nil.
func ClassifyTransportCode(code int) *domain.ErrorKind {
	if code == 0 {
		return nil
	}
	var kind domain.ErrorKind
	switch code {
	case 8, 19:
		kind = domain.ErrTransport
	case 133:
		kind = domain.ErrUnexpected
	default:
		kind = domain.ErrProtocol
	}
	return &kind
}

// ClassifyTransportCodeError is ClassifyTransportCode wrapped into a
// ready-to-post DomainError, carrying the original code for Transport
// classifications.
func ClassifyTransportCodeError(code int, message string) *domain.DomainError {
	kind := ClassifyTransportCode(code)
	if kind == nil {
		return nil
	}
	switch *kind {
	case domain.ErrTransport:
		c := code
		e := domain.TransportError(message, &c)
		return &e
	case domain.ErrProtocol:
		e := domain.ProtocolError(message)
		return &e
	default:
		e := domain.UnexpectedError(message)
		return &e
	}
}
