// Package protocol frames messages for the transport and decodes inbound
// frames through the id dispatch table.
//
// A frame is a u8 message id followed by the payload bits, padded to a byte.
package protocol

import (
	"errors"
	"fmt"

	"github.com/automoto/coopmod/shared/bitstream"
	"github.com/automoto/coopmod/shared/messages"
)

var (
	ErrEmptyFrame       = errors.New("protocol: empty frame")
	ErrTruncated        = errors.New("protocol: truncated message")
	ErrInvalidMessage   = errors.New("protocol: invalid message")
	ErrUnknownMessage   = errors.New("protocol: unknown message id")
	ErrFrameworkMessage = errors.New("protocol: framework message")
)

// Encode frames msg. Messages that are not Valid are never sent.
func Encode(msg messages.Message) ([]byte, error) {
	if !msg.Valid() {
		return nil, fmt.Errorf("encode %s: %w", msg.ID(), ErrInvalidMessage)
	}
	s := bitstream.NewWriter()
	id := uint8(msg.ID())
	s.Uint8(&id)
	if err := msg.Serialize(s); err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.ID(), err)
	}
	frame, err := s.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.ID(), err)
	}
	return frame, nil
}

// PeekID returns the id of a frame without decoding it.
func PeekID(frame []byte) (messages.ID, error) {
	if len(frame) == 0 {
		return messages.IDInvalid, ErrEmptyFrame
	}
	return messages.ID(frame[0]), nil
}

// Decode reads one frame. Unknown ids in the human range fail with
// ErrUnknownMessage; ids outside it that the registry does not know are
// returned as ErrFrameworkMessage so the caller can hand them on.
func (r *Registry) Decode(frame []byte) (messages.Message, error) {
	id, err := PeekID(frame)
	if err != nil {
		return nil, err
	}
	msg, ok := r.New(id)
	if !ok {
		if messages.IsMod(id) || id == messages.IDInvalid {
			return nil, fmt.Errorf("decode id %d: %w", id, ErrUnknownMessage)
		}
		return nil, fmt.Errorf("decode id %d: %w", id, ErrFrameworkMessage)
	}

	s := bitstream.NewReader(frame[1:])
	if err := msg.Serialize(s); err != nil {
		if errors.Is(err, bitstream.ErrTruncated) {
			return nil, fmt.Errorf("decode %s: %w", id, ErrTruncated)
		}
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	if !msg.Valid() {
		return nil, fmt.Errorf("decode %s: %w", id, ErrInvalidMessage)
	}
	return msg, nil
}

// IsProtocolError reports whether err should count toward the
// disconnect threshold.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrEmptyFrame) ||
		errors.Is(err, ErrTruncated) ||
		errors.Is(err, ErrInvalidMessage) ||
		errors.Is(err, ErrUnknownMessage)
}
