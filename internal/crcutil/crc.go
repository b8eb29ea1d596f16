// Package crcutil implements the two checksums the on-flash settings codec
// relies on for integrity: CRC-8/CCITT over ATE headers, and CRC-32 (IEEE
// 802.3) over ZMS big-form record payloads.
package crcutil

import "hash/crc32"

// ccittTable is the 16-entry half-nibble lookup table for CRC-8/CCITT
// (polynomial 0x07, initial value 0xff, no final XOR), as used by the NVS
// and ZMS ATE checksums.
var ccittTable = [16]byte{
	0x00, 0x07, 0x0e, 0x09, 0x1c, 0x1b, 0x12, 0x15,
	0x38, 0x3f, 0x36, 0x31, 0x24, 0x23, 0x2a, 0x2d,
}

// CCITT8 computes the CRC-8/CCITT checksum of buf: initial value 0xff, two
// nibble-shifts per input byte against ccittTable, no final XOR.
func CCITT8(buf []byte) byte {
	crc := byte(0xff)

	for _, b := range buf {
		crc ^= b
		crc = (crc << 4) ^ ccittTable[(crc>>4)&0x0f]
		crc = (crc << 4) ^ ccittTable[(crc>>4)&0x0f]
	}

	return crc
}

// IEEE32 computes the standard reflected CRC-32 (polynomial 0xedb88320,
// initial value 0xffffffff, final XOR 0xffffffff) of buf. This is the same
// checksum `zlib.crc32` produces in the Python original and is bit-identical
// to the stdlib's crc32.IEEE table, so no third-party implementation is
// wired in here (see DESIGN.md).
func IEEE32(buf []byte) uint32 {
	return crc32.ChecksumIEEE(buf)
}
