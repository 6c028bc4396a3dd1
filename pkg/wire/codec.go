package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidMagic   = errors.New("invalid payload magic")
	ErrInvalidVersion = errors.New("unsupported payload version")
	ErrTruncated      = errors.New("truncated payload")
)

// number subtypes on the wire
const (
	numberInt   = 0x00
	numberFloat = 0x01
)

// Compile serializes the payload, applying the configured affiliate
// merge. Given the same affiliate and merge mode the output is
// byte-identical across calls.
func (p *Payload) Compile() ([]byte, error) {
	m := p.merged()

	count := 0
	for _, ns := range namespaces {
		count += len(m.Keys(ns))
	}

	buf := make([]byte, 10, 64+count*16)
	binary.BigEndian.PutUint32(buf[0:4], ProtocolMagic)
	binary.BigEndian.PutUint16(buf[4:6], ProtocolVersion)
	binary.BigEndian.PutUint32(buf[6:10], uint32(count))

	for _, ns := range namespaces {
		for _, key := range m.Keys(ns) {
			if len(key) > math.MaxUint16 {
				return nil, fmt.Errorf("key %q exceeds maximum length", key[:32])
			}
			buf = append(buf, byte(ns))
			buf = binary.BigEndian.AppendUint16(buf, uint16(len(key)))
			buf = append(buf, key...)
			buf = m.appendValue(buf, key, ns)
		}
	}

	return buf, nil
}

func (p *Payload) appendValue(buf []byte, key string, ns Namespace) []byte {
	switch ns {
	case NamespaceObject:
		v := p.objects[key]
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(v)))
		buf = append(buf, v...)
	case NamespaceText:
		v := p.texts[key]
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(v)))
		buf = append(buf, v...)
	case NamespaceBool:
		if p.bools[key] {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case NamespaceNumber:
		n := p.numbers[key]
		if n.isFloat {
			buf = append(buf, numberFloat)
			buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(n.f))
		} else {
			buf = append(buf, numberInt)
			buf = binary.BigEndian.AppendUint64(buf, uint64(n.i))
		}
	case NamespaceChars:
		v := string(p.chars[key])
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(v)))
		buf = append(buf, v...)
	case NamespaceBytes:
		v := p.raw[key]
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(v)))
		buf = append(buf, v...)
	}
	return buf
}

// Decode parses compiled bytes into a sealed payload. Malformed input
// returns an error; a partially decoded payload is never returned.
func Decode(data []byte) (*Payload, error) {
	if len(data) < 10 {
		return nil, ErrTruncated
	}

	if binary.BigEndian.Uint32(data[0:4]) != ProtocolMagic {
		return nil, ErrInvalidMagic
	}
	if binary.BigEndian.Uint16(data[4:6]) != ProtocolVersion {
		return nil, ErrInvalidVersion
	}

	count := int(binary.BigEndian.Uint32(data[6:10]))
	p := NewPayload()
	offset := 10

	for i := 0; i < count; i++ {
		if offset+3 > len(data) {
			return nil, ErrTruncated
		}
		ns := Namespace(data[offset])
		offset++

		keyLen := int(binary.BigEndian.Uint16(data[offset:]))
		offset += 2
		if offset+keyLen > len(data) {
			return nil, ErrTruncated
		}
		key := string(data[offset : offset+keyLen])
		offset += keyLen

		var err error
		offset, err = p.decodeValue(data, offset, key, ns)
		if err != nil {
			return nil, err
		}
	}

	if offset != len(data) {
		return nil, fmt.Errorf("payload has %d trailing bytes", len(data)-offset)
	}

	p.sealed = true
	return p, nil
}

func (p *Payload) decodeValue(data []byte, offset int, key string, ns Namespace) (int, error) {
	switch ns {
	case NamespaceBool:
		if offset+1 > len(data) {
			return 0, ErrTruncated
		}
		p.bools[key] = data[offset] != 0
		return offset + 1, nil

	case NamespaceNumber:
		if offset+9 > len(data) {
			return 0, ErrTruncated
		}
		subtype := data[offset]
		bits := binary.BigEndian.Uint64(data[offset+1 : offset+9])
		switch subtype {
		case numberInt:
			p.numbers[key] = Number{i: int64(bits)}
		case numberFloat:
			p.numbers[key] = Number{isFloat: true, f: math.Float64frombits(bits)}
		default:
			return 0, fmt.Errorf("unknown number subtype 0x%02x for key %q", subtype, key)
		}
		return offset + 9, nil

	case NamespaceObject, NamespaceText, NamespaceChars, NamespaceBytes:
		if offset+4 > len(data) {
			return 0, ErrTruncated
		}
		length := int(binary.BigEndian.Uint32(data[offset:]))
		offset += 4
		if length > len(data)-offset {
			return 0, ErrTruncated
		}
		value := data[offset : offset+length]
		switch ns {
		case NamespaceObject:
			cp := make([]byte, length)
			copy(cp, value)
			p.objects[key] = cp
		case NamespaceText:
			p.texts[key] = string(value)
		case NamespaceChars:
			p.chars[key] = []rune(string(value))
		case NamespaceBytes:
			cp := make([]byte, length)
			copy(cp, value)
			p.raw[key] = cp
		}
		return offset + length, nil

	default:
		return 0, fmt.Errorf("unknown namespace tag 0x%02x", uint8(ns))
	}
}
