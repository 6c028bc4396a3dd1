// Package wire implements the peerwire payload codec and framing.
//
// A payload is a typed key/value bag split across six independent
// namespaces: object, text, boolean, number, character and byte.
// The same key may exist in more than one namespace at once; within a
// namespace keys are unique and the last write wins.
//
// # Compilation
//
// A writable payload is compiled to a self-describing binary form:
//
//	magic (4) | version (2) | entry count (4) | entries...
//
// where each entry carries its namespace tag, key and typed value, so
// a decoder needs no external schema. Entries are emitted in namespace
// order with keys sorted, which makes compilation deterministic:
// compiling the same payload twice yields byte-identical output.
//
// A payload may be compiled against an affiliate payload under a merge
// mode (NONE, DIFFERENCE, REPLACE, REPLACE_OR_ADD), layering the
// affiliate's entries into the result without mutating either side.
//
// # Framing
//
// One compiled payload travels as one frame: a big-endian uint32
// length prefix followed by the compiled bytes. WriteFrame and
// ReadFrame implement the frame boundary over any byte stream.
//
// # Control frames
//
// Frames whose boolean COMMAND_ENABLED field is true are control
// frames and carry the protocol command vocabulary (connect, accept,
// decline, rename, disconnect, success, failed). Everything else is
// user data.
package wire
