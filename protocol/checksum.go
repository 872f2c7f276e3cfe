package protocol

// CRC16InitialValue seeds a new CRC-16 computation.
const CRC16InitialValue = 0xFFFF

// CRC16 computes the link CRC-16 over data.
//
// The algorithm is the byte-wise shift/XOR form used by the peripheral firmware,
// both ends must produce identical values:
//
//	crc = swap(crc); crc ^= b; crc ^= (crc & 0xFF) >> 4; crc ^= crc << 12; crc ^= (crc & 0xFF) << 5
func CRC16(data []byte) uint16 {
	return UpdateCRC16(CRC16InitialValue, data)
}

// UpdateCRC16 continues a running CRC-16 computation.
func UpdateCRC16(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = crc>>8 | crc<<8
		crc ^= uint16(b)
		crc ^= (crc & 0xFF) >> 4
		crc ^= (crc << 8) << 4
		crc ^= ((crc & 0xFF) << 4) << 1
	}
	return crc
}

// VerifyCRC reports whether the last two bytes of frame hold the big-endian
// CRC-16 of the bytes before them.
func VerifyCRC(frame []byte) bool {
	if len(frame) < CRCSize {
		return false
	}
	n := len(frame) - CRCSize
	want := uint16(frame[n])<<8 | uint16(frame[n+1])
	return CRC16(frame[:n]) == want
}

// putCRC appends the CRC of buf[:n] at buf[n:n+2] and returns the new length.
func putCRC(buf []byte, n int) int {
	crc := CRC16(buf[:n])
	buf[n] = byte(crc >> 8)
	buf[n+1] = byte(crc)
	return n + CRCSize
}
