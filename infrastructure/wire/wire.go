// Package wire implements the 2-byte length-prefixed framed codec shared by
// the coordination-server protocol (§4.2/§4.6) and the peer-sync protocol
// (§4.9): a tagged union of request/response messages, msgpack-encoded,
// prefixed with a big-endian uint16 payload length.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"duet/domain/errkind"
)

// MaxPayloadSize bounds a single message body (§6: request/response bodies
// are small control messages; file content travels as separate frames).
const MaxPayloadSize = 1024

// lengthPrefixSize is the width of the length header in bytes.
const lengthPrefixSize = 2

// Tag identifies a message's concrete type within the union.
type Tag uint8

// Coordination-server request/response tags (§4.6).
const (
	TagRegister Tag = iota + 1
	TagGetKey
	TagGetRegisterResponse
	TagRequestConnection
	TagCheckConnection
	TagPing
	TagNoData
)

// Peer-sync request/response tags (§4.9).
const (
	TagGetIndex Tag = iota + 32
	TagGetFile
	TagWrite
	TagRename
	TagDelete
	TagSetIndex
	TagComplete
	TagAck
)

// TagGeneric carries a coarse-grained server-side error (§7 Generic).
const TagGeneric Tag = 255

// Envelope is one decoded wire message: a tag plus its msgpack payload.
type Envelope struct {
	Tag     Tag
	Payload []byte
}

// Marshal msgpack-encodes v and wraps it with tag in an Envelope's payload.
func Marshal(tag Tag, v any) (Envelope, error) {
	var payload []byte
	if v != nil {
		encoded, err := msgpack.Marshal(v)
		if err != nil {
			return Envelope{}, fmt.Errorf("%w: %v", errkind.ErrSerde, err)
		}
		payload = encoded
	}
	if len(payload) > MaxPayloadSize {
		return Envelope{}, errkind.ErrTooLarge
	}
	return Envelope{Tag: tag, Payload: payload}, nil
}

// Decode unmarshals the envelope's payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	if err := msgpack.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%w: %v", errkind.ErrSerde, err)
	}
	return nil
}

// WriteMessage encodes tag/v and writes it to w as
// [2-byte big-endian length][1-byte tag][msgpack payload].
func WriteMessage(w io.Writer, tag Tag, v any) error {
	env, err := Marshal(tag, v)
	if err != nil {
		return err
	}
	return writeEnvelope(w, env)
}

// WriteEnvelope writes an already-built Envelope verbatim, for callers
// (such as the coordination dispatcher) that constructed it ahead of time
// and must not re-marshal its payload.
func WriteEnvelope(w io.Writer, env Envelope) error {
	return writeEnvelope(w, env)
}

func writeEnvelope(w io.Writer, env Envelope) error {
	body := make([]byte, 1+len(env.Payload))
	body[0] = byte(env.Tag)
	copy(body[1:], env.Payload)

	if len(body) > MaxPayloadSize+1 {
		return errkind.ErrTooLarge
	}

	header := make([]byte, lengthPrefixSize)
	binary.BigEndian.PutUint16(header, uint16(len(body)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("%w: %v", errkind.ErrWrite, err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("%w: %v", errkind.ErrWrite, err)
	}
	return nil
}

// ReadMessage reads one length-prefixed message from r.
func ReadMessage(r io.Reader) (Envelope, error) {
	header := make([]byte, lengthPrefixSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Envelope{}, errkind.ErrUnexpectedEOF
		}
		return Envelope{}, fmt.Errorf("%w: %v", errkind.ErrRead, err)
	}

	length := binary.BigEndian.Uint16(header)
	if int(length) > MaxPayloadSize+1 {
		return Envelope{}, errkind.ErrTooLarge
	}
	if length == 0 {
		return Envelope{}, errkind.ErrUnexpectedEOF
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Envelope{}, errkind.ErrUnexpectedEOF
		}
		return Envelope{}, fmt.Errorf("%w: %v", errkind.ErrRead, err)
	}

	return Envelope{Tag: Tag(body[0]), Payload: body[1:]}, nil
}
