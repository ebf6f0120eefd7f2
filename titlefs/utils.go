package titlefs

import "encoding/binary"

func readBytesUntilZero(data []byte) []byte {
	var nameBytes []byte
	for _, b := range data {
		if b == 0x0 {
			break
		}
		nameBytes = append(nameBytes, b)
	}
	return nameBytes
}

// readUint16UntilZero returns the little endian UTF-16 code units of data up
// to the first zero unit.
func readUint16UntilZero(data []byte) []byte {
	for i := 0; i+1 < len(data); i += 2 {
		if binary.LittleEndian.Uint16(data[i:]) == 0 {
			return data[:i]
		}
	}
	return data[:len(data)&^1]
}
