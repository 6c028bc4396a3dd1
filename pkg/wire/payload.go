package wire

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Number is a numeric payload value. It remembers whether it was
// written as an integer or a float so both kinds round-trip exactly.
type Number struct {
	isFloat bool
	i       int64
	f       float64
}

// Int64 returns the integer value (truncating a float).
func (n Number) Int64() int64 {
	if n.isFloat {
		return int64(n.f)
	}
	return n.i
}

// Float64 returns the value as a float64.
func (n Number) Float64() float64 {
	if n.isFloat {
		return n.f
	}
	return float64(n.i)
}

// IsFloat reports whether the value was written as a float.
func (n Number) IsFloat() bool { return n.isFloat }

// Payload is the typed key/value bag carried inside a frame.
//
// A payload built with NewPayload is writable. A payload returned by
// Decode is sealed; calling a write method on it panics. Reads are
// always allowed.
type Payload struct {
	objects map[string][]byte // JSON-encoded
	texts   map[string]string
	bools   map[string]bool
	numbers map[string]Number
	chars   map[string][]rune
	raw     map[string][]byte

	affiliate *Payload
	mode      MergeMode
	sealed    bool
}

// NewPayload creates an empty writable payload.
func NewPayload() *Payload {
	return &Payload{
		objects: make(map[string][]byte),
		texts:   make(map[string]string),
		bools:   make(map[string]bool),
		numbers: make(map[string]Number),
		chars:   make(map[string][]rune),
		raw:     make(map[string][]byte),
	}
}

// NewPayloadMerging creates an empty writable payload that will merge
// the affiliate's entries under the given mode when compiled. A nil
// affiliate behaves like NewPayload.
func NewPayloadMerging(affiliate *Payload, mode MergeMode) *Payload {
	p := NewPayload()
	p.affiliate = affiliate
	p.mode = mode
	return p
}

func (p *Payload) checkWritable() {
	if p.sealed {
		panic("wire: write to sealed payload")
	}
}

// WriteObject JSON-encodes v into the object namespace.
func (p *Payload) WriteObject(key string, v any) error {
	p.checkWritable()
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode object %q: %w", key, err)
	}
	p.objects[key] = data
	return nil
}

// WriteText stores a text value.
func (p *Payload) WriteText(key, value string) {
	p.checkWritable()
	p.texts[key] = value
}

// WriteBool stores a boolean value.
func (p *Payload) WriteBool(key string, value bool) {
	p.checkWritable()
	p.bools[key] = value
}

// WriteInt stores an integer number.
func (p *Payload) WriteInt(key string, value int64) {
	p.checkWritable()
	p.numbers[key] = Number{i: value}
}

// WriteFloat stores a floating point number.
func (p *Payload) WriteFloat(key string, value float64) {
	p.checkWritable()
	p.numbers[key] = Number{isFloat: true, f: value}
}

// WriteChars stores a character array value.
func (p *Payload) WriteChars(key string, value []rune) {
	p.checkWritable()
	cp := make([]rune, len(value))
	copy(cp, value)
	p.chars[key] = cp
}

// WriteBytes stores a byte array value.
func (p *Payload) WriteBytes(key string, value []byte) {
	p.checkWritable()
	cp := make([]byte, len(value))
	copy(cp, value)
	p.raw[key] = cp
}

// Remove deletes a key from the given namespace.
func (p *Payload) Remove(key string, ns Namespace) {
	p.checkWritable()
	switch ns {
	case NamespaceObject:
		delete(p.objects, key)
	case NamespaceText:
		delete(p.texts, key)
	case NamespaceBool:
		delete(p.bools, key)
	case NamespaceNumber:
		delete(p.numbers, key)
	case NamespaceChars:
		delete(p.chars, key)
	case NamespaceBytes:
		delete(p.raw, key)
	}
}

// Has reports whether the key exists in the given namespace.
func (p *Payload) Has(key string, ns Namespace) bool {
	switch ns {
	case NamespaceObject:
		_, ok := p.objects[key]
		return ok
	case NamespaceText:
		_, ok := p.texts[key]
		return ok
	case NamespaceBool:
		_, ok := p.bools[key]
		return ok
	case NamespaceNumber:
		_, ok := p.numbers[key]
		return ok
	case NamespaceChars:
		_, ok := p.chars[key]
		return ok
	case NamespaceBytes:
		_, ok := p.raw[key]
		return ok
	default:
		return false
	}
}

// Keys returns the sorted key set of the given namespace.
func (p *Payload) Keys(ns Namespace) []string {
	var keys []string
	switch ns {
	case NamespaceObject:
		for k := range p.objects {
			keys = append(keys, k)
		}
	case NamespaceText:
		for k := range p.texts {
			keys = append(keys, k)
		}
	case NamespaceBool:
		for k := range p.bools {
			keys = append(keys, k)
		}
	case NamespaceNumber:
		for k := range p.numbers {
			keys = append(keys, k)
		}
	case NamespaceChars:
		for k := range p.chars {
			keys = append(keys, k)
		}
	case NamespaceBytes:
		for k := range p.raw {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// GetObject decodes the object stored under key into out.
func (p *Payload) GetObject(key string, out any) error {
	data, ok := p.objects[key]
	if !ok {
		return fmt.Errorf("no object stored under %q", key)
	}
	return json.Unmarshal(data, out)
}

// GetText returns the text stored under key.
func (p *Payload) GetText(key string) (string, bool) {
	v, ok := p.texts[key]
	return v, ok
}

// GetBool returns the boolean stored under key.
func (p *Payload) GetBool(key string) (bool, bool) {
	v, ok := p.bools[key]
	return v, ok
}

// GetNumber returns the number stored under key.
func (p *Payload) GetNumber(key string) (Number, bool) {
	v, ok := p.numbers[key]
	return v, ok
}

// GetInt returns the number stored under key as an integer.
func (p *Payload) GetInt(key string) (int64, bool) {
	v, ok := p.numbers[key]
	if !ok {
		return 0, false
	}
	return v.Int64(), true
}

// GetFloat returns the number stored under key as a float.
func (p *Payload) GetFloat(key string) (float64, bool) {
	v, ok := p.numbers[key]
	if !ok {
		return 0, false
	}
	return v.Float64(), true
}

// GetChars returns a copy of the character array stored under key.
func (p *Payload) GetChars(key string) ([]rune, bool) {
	v, ok := p.chars[key]
	if !ok {
		return nil, false
	}
	cp := make([]rune, len(v))
	copy(cp, v)
	return cp, true
}

// GetBytes returns a copy of the byte array stored under key.
func (p *Payload) GetBytes(key string) ([]byte, bool) {
	v, ok := p.raw[key]
	if !ok {
		return nil, false
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true
}

// Sealed reports whether the payload is read-only.
func (p *Payload) Sealed() bool { return p.sealed }

// Equal reports whether both payloads hold the same (namespace, key,
// value) triples. Affiliate and merge mode are not compared.
func (p *Payload) Equal(o *Payload) bool {
	merged, other := p.merged(), o.merged()
	for _, ns := range namespaces {
		a, b := merged.Keys(ns), other.Keys(ns)
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
	}
	for k, v := range merged.texts {
		if other.texts[k] != v {
			return false
		}
	}
	for k, v := range merged.bools {
		if other.bools[k] != v {
			return false
		}
	}
	for k, v := range merged.numbers {
		if other.numbers[k] != v {
			return false
		}
	}
	for k, v := range merged.chars {
		if string(other.chars[k]) != string(v) {
			return false
		}
	}
	for k, v := range merged.raw {
		if string(other.raw[k]) != string(v) {
			return false
		}
	}
	for k, v := range merged.objects {
		if string(other.objects[k]) != string(v) {
			return false
		}
	}
	return true
}

// merged resolves the affiliate merge into a standalone payload. The
// receiver is not mutated, so compilation stays idempotent.
func (p *Payload) merged() *Payload {
	if p.affiliate == nil || p.mode == MergeNone {
		return p
	}

	out := NewPayload()
	copyEntries(out, p)

	aff := p.affiliate.merged()
	for _, ns := range namespaces {
		for _, key := range aff.Keys(ns) {
			local := p.Has(key, ns)
			switch p.mode {
			case MergeDifference:
				if local {
					continue
				}
			case MergeReplace:
				if !local {
					continue
				}
			case MergeReplaceOrAdd:
				// Always taken.
			}
			copyEntry(out, aff, key, ns)
		}
	}
	return out
}

func copyEntries(dst, src *Payload) {
	for _, ns := range namespaces {
		for _, key := range src.Keys(ns) {
			copyEntry(dst, src, key, ns)
		}
	}
}

func copyEntry(dst, src *Payload, key string, ns Namespace) {
	switch ns {
	case NamespaceObject:
		dst.objects[key] = src.objects[key]
	case NamespaceText:
		dst.texts[key] = src.texts[key]
	case NamespaceBool:
		dst.bools[key] = src.bools[key]
	case NamespaceNumber:
		dst.numbers[key] = src.numbers[key]
	case NamespaceChars:
		dst.chars[key] = src.chars[key]
	case NamespaceBytes:
		dst.raw[key] = src.raw[key]
	}
}
