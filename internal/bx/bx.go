// Package bx holds small byte-encoding helpers shared by the pager, the
// B+Tree node codec, and the heap page codec. All on-disk integers are
// little-endian and host-native; the format is not meant to be portable
// across architectures.
package bx

import "encoding/binary"

var LE = binary.LittleEndian

func U16(b []byte) uint16 { return LE.Uint16(b) }
func U32(b []byte) uint32 { return LE.Uint32(b) }
func I32(b []byte) int32  { return int32(U32(b)) }

func PutU16(b []byte, v uint16) { LE.PutUint16(b, v) }
func PutU32(b []byte, v uint32) { LE.PutUint32(b, v) }
func PutI32(b []byte, v int32)  { PutU32(b, uint32(v)) }

func U16At(b []byte, off int) uint16       { return U16(b[off:]) }
func U32At(b []byte, off int) uint32       { return U32(b[off:]) }
func I32At(b []byte, off int) int32        { return I32(b[off:]) }
func PutU16At(b []byte, off int, v uint16) { PutU16(b[off:], v) }
func PutU32At(b []byte, off int, v uint32) { PutU32(b[off:], v) }
func PutI32At(b []byte, off int, v int32)  { PutI32(b[off:], v) }
