package storage

import "encoding/binary"

// AttrSize is the byte width of a fixed-size column. The engine only
// supports the four widths the original tuple format allows.
type AttrSize = uint8

const (
	Size1 AttrSize = 1
	Size2 AttrSize = 2
	Size4 AttrSize = 4
	Size8 AttrSize = 8
)

// ValidAttrSize reports whether size is one of {1, 2, 4, 8}.
func ValidAttrSize(size uint8) bool {
	switch size {
	case Size1, Size2, Size4, Size8:
		return true
	default:
		return false
	}
}

// PadUpToSize pads offset up to the next multiple of wordSize.
func PadUpToSize(wordSize uint8, offset uint32) uint32 {
	remainder := offset % uint32(wordSize)
	if remainder == 0 {
		return offset
	}
	return offset + uint32(wordSize) - remainder
}

// WriteBytes writes the low attrSize bytes of val, little-endian, to pos.
// attrSize must be one of {1, 2, 4, 8}.
func WriteBytes(attrSize uint8, val uint64, pos []byte) {
	switch attrSize {
	case Size1:
		pos[0] = byte(val)
	case Size2:
		binary.LittleEndian.PutUint16(pos, uint16(val))
	case Size4:
		binary.LittleEndian.PutUint32(pos, uint32(val))
	case Size8:
		binary.LittleEndian.PutUint64(pos, val)
	default:
		panic("storage: WriteBytes called with invalid attribute size")
	}
}

// ReadBytes reads attrSize little-endian bytes from pos and zero-extends
// them to 64 bits. attrSize must be one of {1, 2, 4, 8}.
func ReadBytes(attrSize uint8, pos []byte) uint64 {
	switch attrSize {
	case Size1:
		return uint64(pos[0])
	case Size2:
		return uint64(binary.LittleEndian.Uint16(pos))
	case Size4:
		return uint64(binary.LittleEndian.Uint32(pos))
	case Size8:
		return binary.LittleEndian.Uint64(pos)
	default:
		panic("storage: ReadBytes called with invalid attribute size")
	}
}
