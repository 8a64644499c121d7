// Package codec implements the deterministic canonical byte encoding used
// for every signed PayKit structure (spec §4.2): two structurally equal
// values always produce byte-identical output, independent of
// implementation or platform. The style mirrors the teacher's own
// lnwire.writeElements/readElements helpers (see lnwire/message.go and
// lnwire/funding_locked.go in the retrieval pack) — small sequential
// element writers/readers over an io.Writer/io.Reader — generalized to
// the rules this protocol requires: little-endian fixed-width integers,
// length-prefixed strings and byte slices, sorted maps, and a one-byte
// optional-field discriminant.
package codec

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"
	"unicode/utf8"
)

// DefaultMaxLen is the hard cap on any length-prefixed field, per spec
// §4.2 and §6 (16 MiB per message).
const DefaultMaxLen = 16 * 1024 * 1024

// Codec carries the length cap applied to every variable-length field it
// decodes. The zero value is not ready for use; construct one with New
// or NewWithLimit.
type Codec struct {
	MaxLen uint32
}

// New returns a Codec using DefaultMaxLen.
func New() *Codec { return &Codec{MaxLen: DefaultMaxLen} }

// NewWithLimit returns a Codec enforcing a caller-supplied cap.
func NewWithLimit(maxLen uint32) *Codec { return &Codec{MaxLen: maxLen} }

// --- fixed-width primitives ---

func WriteUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func ReadUint8(r io.Reader) (uint8, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errTruncated("ReadUint8")
	}
	return b[0], nil
}

func WriteBool(w io.Writer, v bool) error {
	if v {
		return WriteUint8(w, 0x01)
	}
	return WriteUint8(w, 0x00)
}

func ReadBool(r io.Reader) (bool, error) {
	b, err := ReadUint8(r)
	if err != nil {
		return false, err
	}
	return b == 0x01, nil
}

func WriteUint16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func ReadUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errTruncated("ReadUint16")
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func WriteUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func ReadUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errTruncated("ReadUint32")
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func WriteUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func ReadUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errTruncated("ReadUint64")
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func WriteInt64(w io.Writer, v int64) error {
	return WriteUint64(w, uint64(v))
}

func ReadInt64(r io.Reader) (int64, error) {
	v, err := ReadUint64(r)
	return int64(v), err
}

// WriteRaw writes exactly len(b) bytes with no length prefix. Used for
// fixed-width domain fields (public keys, nonces, signatures) whose size
// is already known from the field's position in the structure.
func WriteRaw(w io.Writer, b []byte) error {
	_, err := w.Write(b)
	return err
}

// ReadRaw fills buf completely from r, or fails with a truncation error.
func ReadRaw(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		return errTruncated("ReadRaw")
	}
	return nil
}

// --- length-prefixed variable fields ---

// WriteBytes writes a u32 little-endian length prefix followed by b.
func (c *Codec) WriteBytes(w io.Writer, b []byte) error {
	if uint32(len(b)) > c.MaxLen {
		return errTooLarge("WriteBytes", uint32(len(b)), c.MaxLen)
	}
	if err := WriteUint32(w, uint32(len(b))); err != nil {
		return err
	}
	return WriteRaw(w, b)
}

// ReadBytes reads a u32 little-endian length prefix and then that many
// bytes, failing if the declared length exceeds c.MaxLen.
func (c *Codec) ReadBytes(r io.Reader) ([]byte, error) {
	n, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	if n > c.MaxLen {
		return nil, errTooLarge("ReadBytes", n, c.MaxLen)
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errTruncated("ReadBytes")
		}
	}
	return buf, nil
}

// WriteString writes s as UTF-8 bytes with a length prefix, per
// WriteBytes. s must already be valid UTF-8.
func (c *Codec) WriteString(w io.Writer, s string) error {
	if !utf8.ValidString(s) {
		return &CodecError{Op: "WriteString", Reason: "not valid utf-8"}
	}
	return c.WriteBytes(w, []byte(s))
}

// ReadString reads a length-prefixed UTF-8 string.
func (c *Codec) ReadString(r io.Reader) (string, error) {
	b, err := c.ReadBytes(r)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", &CodecError{Op: "ReadString", Reason: "not valid utf-8"}
	}
	return string(b), nil
}

// --- optional fields ---

// WriteOptionalPresence writes the one-byte discriminant for an optional
// field (spec §4.2). The caller is responsible for writing the value
// itself immediately afterward when present is true.
func WriteOptionalPresence(w io.Writer, present bool) error {
	return WriteBool(w, present)
}

// ReadOptionalPresence reads the one-byte discriminant for an optional
// field. The caller is responsible for reading the value itself
// immediately afterward when the returned bool is true.
func ReadOptionalPresence(r io.Reader) (bool, error) {
	return ReadBool(r)
}

// --- maps ---

// WriteMap writes m as a length-prefixed sequence of (key, value) pairs,
// sorted ascending by the canonical encoding of the key (spec §4.2) —
// its u32-LE length prefix followed by its raw bytes — not by the raw
// string bytes themselves. Those orders diverge whenever two keys have
// different lengths (e.g. "z" precedes "aa" under the encoded-key
// order but follows it under a plain string comparison), so sorting by
// raw string bytes would not reproduce the same output as another
// implementation following the canonical-encoding rule literally.
func (c *Codec) WriteMap(w io.Writer, m map[string][]byte) error {
	keys := make([]string, 0, len(m))
	encoded := make(map[string][]byte, len(m))
	for k := range m {
		keys = append(keys, k)
		var buf bytes.Buffer
		if err := c.WriteString(&buf, k); err != nil {
			return err
		}
		encoded[k] = buf.Bytes()
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(encoded[keys[i]], encoded[keys[j]]) < 0
	})

	if err := WriteUint32(w, uint32(len(keys))); err != nil {
		return err
	}
	for _, k := range keys {
		if err := WriteRaw(w, encoded[k]); err != nil {
			return err
		}
		if err := c.WriteBytes(w, m[k]); err != nil {
			return err
		}
	}
	return nil
}

// ReadMap reads a map previously written by WriteMap.
func (c *Codec) ReadMap(r io.Reader) (map[string][]byte, error) {
	n, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	if n > c.MaxLen {
		return nil, errTooLarge("ReadMap", n, c.MaxLen)
	}
	m := make(map[string][]byte, n)
	for i := uint32(0); i < n; i++ {
		k, err := c.ReadString(r)
		if err != nil {
			return nil, err
		}
		v, err := c.ReadBytes(r)
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

// --- enum discriminants ---

// WriteDiscriminant writes the u32 enum discriminant that precedes a
// variant's payload.
func WriteDiscriminant(w io.Writer, d uint32) error {
	return WriteUint32(w, d)
}

// ReadDiscriminant reads a u32 enum discriminant, failing if it is not
// one of the values in valid.
func ReadDiscriminant(r io.Reader, valid map[uint32]bool) (uint32, error) {
	d, err := ReadUint32(r)
	if err != nil {
		return 0, err
	}
	if !valid[d] {
		return 0, errBadDiscriminant("ReadDiscriminant", d)
	}
	return d, nil
}
