package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WriteFrame writes one compiled payload as a length-prefixed frame.
func WriteFrame(w io.Writer, compiled []byte) error {
	if len(compiled) > MaxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds maximum size", len(compiled))
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(compiled)))

	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err := w.Write(compiled)
	return err
}

// ReadFrame reads one length-prefixed frame from the stream.
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length > MaxFrameSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds maximum size", length)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadPayload reads and decodes one frame.
func ReadPayload(r io.Reader) (*Payload, error) {
	frame, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	return Decode(frame)
}

// WritePayload compiles the payload and writes it as one frame.
func WritePayload(w io.Writer, p *Payload) error {
	compiled, err := p.Compile()
	if err != nil {
		return err
	}
	return WriteFrame(w, compiled)
}
