package nvmcodec

import (
	"github.com/nordicplayground/ncsfmntools/internal/crcutil"
)

// zmsATELogicalSize is sizeof the unpadded ZMS ATE, before alignment to the
// device's write-block size.
const zmsATELogicalSize = 16

// zmsHeadID is the special record id shared by the Empty and Close ATEs.
const zmsHeadID uint32 = 0xffffffff

// zmsSmallDataMaxLen is the largest value length ZMS inlines into the ATE
// content instead of the data region.
const zmsSmallDataMaxLen = 8

const (
	zmsEmptyVersion  = 0x01
	zmsEmptyMagic    = 0x42
	zmsCloseMetadata = 0xffffffff
)

func zmsEmptyMetadata() uint32 {
	return uint32(zmsEmptyVersion) | (uint32(zmsEmptyMagic) << 8)
}

// zmsATE is the logical 16-byte ZMS Allocation Table Entry. Unlike the NVS
// ATE, the CRC-8 byte sits at the very first byte, not the last — see spec
// §9's endianness note. Content is either 8 bytes of inline small data or a
// 4-byte offset + 4-byte metadata/CRC-32 pair, depending on Len/ID.
type zmsATE struct {
	CRC8     byte
	CycleCnt byte
	Len      uint16
	ID       uint32
	Content  [8]byte
}

func zmsATEBody(cycleCnt byte, length uint16, id uint32, content [8]byte) []byte {
	body := make([]byte, zmsATELogicalSize-1)
	body[0] = cycleCnt
	defaultEncoding.PutUint16(body[1:3], length)
	defaultEncoding.PutUint32(body[3:7], id)
	copy(body[7:15], content[:])

	return body
}

// zmsATEPack serializes a complete 16-byte ATE, computing the CRC-8 over
// the 15 trailing bytes.
func zmsATEPack(cycleCnt byte, length uint16, id uint32, content [8]byte) []byte {
	body := zmsATEBody(cycleCnt, length, id, content)

	out := make([]byte, zmsATELogicalSize)
	out[0] = crcutil.CCITT8(body)
	copy(out[1:], body)

	return out
}

func zmsATEUnpack(raw []byte) zmsATE {
	var a zmsATE

	a.CRC8 = raw[0]
	a.CycleCnt = raw[1]
	a.Len = defaultEncoding.Uint16(raw[2:4])
	a.ID = defaultEncoding.Uint32(raw[4:8])
	copy(a.Content[:], raw[8:16])

	return a
}

func (a zmsATE) isSpecial() bool {
	return a.ID == zmsHeadID
}

func (a zmsATE) isValidCRC8() bool {
	content := a.Content
	body := zmsATEBody(a.CycleCnt, a.Len, a.ID, content)
	return a.CRC8 == crcutil.CCITT8(body)
}

func (a zmsATE) isValid(currentCycleCnt byte) bool {
	return a.isValidCRC8() && a.CycleCnt == currentCycleCnt
}

func decodeDataInfo(content [8]byte) (offset uint32, info uint32) {
	offset = defaultEncoding.Uint32(content[0:4])
	info = defaultEncoding.Uint32(content[4:8])

	return offset, info
}

func encodeDataInfo(offset, info uint32) [8]byte {
	var c [8]byte
	defaultEncoding.PutUint32(c[0:4], offset)
	defaultEncoding.PutUint32(c[4:8], info)

	return c
}

func encodeSmallData(data []byte) [8]byte {
	var c [8]byte
	copy(c[:], data)
	for i := len(data); i < zmsSmallDataMaxLen; i++ {
		c[i] = EraseValue
	}

	return c
}

func emptyATEBytes(cycleCnt byte) []byte {
	content := encodeDataInfo(0, zmsEmptyMetadata())
	return zmsATEPack(cycleCnt, 0xffff, zmsHeadID, content)
}

func closeATEBytes(cycleCnt byte, offset uint32) []byte {
	content := encodeDataInfo(offset, zmsCloseMetadata)
	return zmsATEPack(cycleCnt, 0, zmsHeadID, content)
}

func (a zmsATE) isEmptyATE(cycleCnt byte) bool {
	if !a.isValidCRC8() || a.ID != zmsHeadID || a.Len != 0xffff {
		return false
	}

	offset, info := decodeDataInfo(a.Content)
	return offset == 0 && info == zmsEmptyMetadata() && a.CycleCnt == cycleCnt
}

func (a zmsATE) isCloseATE(ateSize int, currentCycleCnt byte) bool {
	if !a.isValidCRC8() || a.ID != zmsHeadID || a.Len != 0 {
		return false
	}

	offset, info := decodeDataInfo(a.Content)
	if info != zmsCloseMetadata || a.CycleCnt != currentCycleCnt {
		return false
	}

	return (SectorSize-int(offset))%ateSize == 0
}

// zmsCodec implements Codec for the 16-byte-ATE format with cycle counters,
// inline small data, and CRC-32-checked big data.
type zmsCodec struct{}

const (
	zmsNamecntID    uint32 = 0x80000000
	zmsNameIDOffset uint32 = 0x40000000
)

func (zmsCodec) Kind() CodecKind      { return KindZMS }
func (zmsCodec) NamecntID() uint32    { return zmsNamecntID }
func (zmsCodec) NameIDOffset() uint32 { return zmsNameIDOffset }
func (zmsCodec) ATESize(wbs int) int  { return roundUpToBlock(zmsATELogicalSize, wbs) }

// InitSector writes the Empty ATE (cycle_cnt=1) into the sector's last
// slot, then reserves the two slots above the data region a future Close
// ATE and GC-done ATE would occupy.
func (c zmsCodec) InitSector(w *SectorWriter) error {
	padded := alignWithErase(emptyATEBytes(0x01), w.writeBlockSize)
	if err := w.writeATE(padded); err != nil {
		return err
	}

	ateSize := c.ATESize(w.writeBlockSize)
	return w.reserveATESlots(2, ateSize)
}

func (c zmsCodec) WriteDataATE(w *SectorWriter, writeBlockSize int, recordID uint32, data []byte) error {
	const cycleCnt = 0x01

	if len(data) <= zmsSmallDataMaxLen {
		content := encodeSmallData(data)
		ate := zmsATEPack(cycleCnt, uint16(len(data)), recordID, content)
		padded := alignWithErase(ate, writeBlockSize)

		return w.writeATE(padded)
	}

	content := encodeDataInfo(uint32(w.dataOffset), crcutil.IEEE32(data))
	ate := zmsATEPack(cycleCnt, uint16(len(data)), recordID, content)
	padded := alignWithErase(ate, writeBlockSize)

	if err := w.writeATE(padded); err != nil {
		return err
	}

	aligned := alignWithErase(data, writeBlockSize)
	_, err := w.writeData(aligned)

	return err
}

func (c zmsCodec) ParseSector(sector []byte, writeBlockSize int, diag Diagnostics) SectorRecords {
	if isErased(sector) {
		return SectorRecords{Status: StatusErased}
	}

	ateSize := c.ATESize(writeBlockSize)

	atePtr := len(sector) - ateSize
	empty := zmsATEUnpack(sector[atePtr : atePtr+ateSize])

	currentCycleCnt := empty.CycleCnt
	if !empty.isEmptyATE(currentCycleCnt) {
		return SectorRecords{Status: StatusNA}
	}

	atePtr -= ateSize
	closeCandidate := zmsATEUnpack(sector[atePtr : atePtr+ateSize])

	var status SectorStatus
	if closeCandidate.isCloseATE(ateSize, currentCycleCnt) {
		status = StatusClosed
	} else {
		status = StatusOpen
	}

	dataPtr := 0
	records := map[uint32][]byte{}

	for atePtr >= 0 {
		atePtr -= ateSize
		if atePtr < dataPtr {
			break
		}

		ate := zmsATEUnpack(sector[atePtr : atePtr+ateSize])
		if !ate.isValid(currentCycleCnt) {
			continue
		}

		if ate.isSpecial() {
			// A stray Empty/Close-shaped ATE mid-walk carries no user
			// record; ignore it and keep walking.
			continue
		}

		if ate.Len <= zmsSmallDataMaxLen {
			records[ate.ID] = append([]byte(nil), ate.Content[:ate.Len]...)
			continue
		}

		offset, dataCRC := decodeDataInfo(ate.Content)

		if int(offset) < dataPtr || int(offset)+int(ate.Len) >= atePtr {
			return SectorRecords{Status: StatusNA}
		}

		value := sector[int(offset) : int(offset)+int(ate.Len)]
		dataPtr = int(offset) + int(ate.Len)

		if dataCRC != 0 && crcutil.IEEE32(value) != dataCRC {
			if diag != nil {
				diag.Warnf("zms: CRC-32 mismatch for record 0x%x, dropping", ate.ID)
			}
			continue
		}

		records[ate.ID] = value
	}

	if status == StatusOpen && len(records) == 0 {
		return SectorRecords{Status: StatusErased}
	}

	return SectorRecords{Status: status, Records: records}
}
