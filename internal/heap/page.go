// Package heap implements the append-only tuple storage the B+Tree
// index points into. It is an external collaborator from the index's
// point of view (§1): the index only ever stores and returns the
// RecordId heap.Append hands back.
package heap

import "github.com/relicdb/relicdb/internal/bx"

// Slotted page layout, grounded on the line-pointer design used
// throughout the reference storage code this module descends from:
// a header plus a slot directory growing up, tuple bytes growing down
// from the end of the page.
//
//	[0:2] lower uint16 — end of the slot directory
//	[2:4] upper uint16 — start of tuple data
//	slot i, at headerSize+i*slotSize: [offset uint16][length uint16]
const (
	headerSize = 4
	slotSize   = 4
)

func initPage(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
	setLower(buf, headerSize)
	setUpper(buf, len(buf))
}

func lower(buf []byte) int        { return int(bx.U16At(buf, 0)) }
func setLower(buf []byte, v int)  { bx.PutU16At(buf, 0, uint16(v)) }
func upper(buf []byte) int        { return int(bx.U16At(buf, 2)) }
func setUpper(buf []byte, v int)  { bx.PutU16At(buf, 2, uint16(v)) }

func numSlots(buf []byte) int { return (lower(buf) - headerSize) / slotSize }

func slotOffset(i int) int { return headerSize + i*slotSize }

func getSlot(buf []byte, i int) (offset, length int) {
	o := slotOffset(i)
	return int(bx.U16At(buf, o)), int(bx.U16At(buf, o+2))
}

func putSlot(buf []byte, i, offset, length int) {
	o := slotOffset(i)
	bx.PutU16At(buf, o, uint16(offset))
	bx.PutU16At(buf, o+2, uint16(length))
}

// insertTuple appends tup to buf's free space and records a new slot
// for it, returning the slot index. It fails if there isn't room.
func insertTuple(buf []byte, tup []byte) (slot int, ok bool) {
	need := len(tup) + slotSize
	if upper(buf)-lower(buf) < need {
		return -1, false
	}
	newUpper := upper(buf) - len(tup)
	copy(buf[newUpper:], tup)
	setUpper(buf, newUpper)

	slot = numSlots(buf)
	putSlot(buf, slot, newUpper, len(tup))
	setLower(buf, lower(buf)+slotSize)
	return slot, true
}

// readTuple returns the bytes stored at slot, or ok=false if the slot
// doesn't exist.
func readTuple(buf []byte, slot int) ([]byte, bool) {
	if slot < 0 || slot >= numSlots(buf) {
		return nil, false
	}
	offset, length := getSlot(buf, slot)
	if length == 0 {
		return nil, false
	}
	return buf[offset : offset+length], true
}
