package wire

import "encoding/binary"

// FindMagic scans buf for the next occurrence of magic encoded as a
// little-endian uint32, starting at offset 0. It returns the byte offset
// of the match, or -1 if magic does not appear.
//
// Used by the endpoint link reader to resynchronize after a malformed
// frame: discard bytes until the next valid magic, rather than attempting
// to partially decode corrupted input.
func FindMagic(buf []byte, magic uint32) int {
	if len(buf) < 4 {
		return -1
	}
	for i := 0; i+4 <= len(buf); i++ {
		if binary.LittleEndian.Uint32(buf[i:i+4]) == magic {
			return i
		}
	}
	return -1
}

// FindEitherMagic scans for whichever of the two frame magics occurs
// first, returning its offset and which magic matched.
func FindEitherMagic(buf []byte) (offset int, magic uint32, found bool) {
	ti := FindMagic(buf, TelemetryMagic)
	di := FindMagic(buf, DispatchMagic)
	switch {
	case ti < 0 && di < 0:
		return 0, 0, false
	case ti < 0:
		return di, DispatchMagic, true
	case di < 0:
		return ti, TelemetryMagic, true
	case ti < di:
		return ti, TelemetryMagic, true
	default:
		return di, DispatchMagic, true
	}
}
