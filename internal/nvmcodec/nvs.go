package nvmcodec

import (
	"github.com/go-restruct/restruct"

	"github.com/nordicplayground/ncsfmntools/internal/crcutil"
)

// nvsATELogicalSize is sizeof the unpadded NVS ATE, before alignment to the
// device's write-block size.
const nvsATELogicalSize = 8

// nvsCloseRecordID is the record_id a Close ATE carries.
const nvsCloseRecordID = 0xffff

// nvsATE is the logical 8-byte NVS Allocation Table Entry, little-endian,
// unpacked/packed with go-restruct against natural field widths (no tags
// needed; mirrors the teacher's tag-free restruct.Unpack convention).
type nvsATE struct {
	RecordID   uint16
	DataOffset uint16
	DataLen    uint16
	Reserved   uint8
	CRC        uint8
}

func (a nvsATE) crc8() byte {
	body, _ := restruct.Pack(defaultEncoding, &a)
	return crcutil.CCITT8(body[:7])
}

func nvsATEUnpack(raw []byte) nvsATE {
	var a nvsATE
	// A malformed/short slot cannot happen: callers always pass one whole
	// padded ATE slot (at least nvsATELogicalSize bytes) sliced from a full
	// sector.
	_ = restruct.Unpack(raw[:nvsATELogicalSize], defaultEncoding, &a)
	return a
}

func nvsATEPack(recordID uint32, dataOffset, dataLen int) []byte {
	a := nvsATE{
		RecordID:   uint16(recordID),
		DataOffset: uint16(dataOffset),
		DataLen:    uint16(dataLen),
	}
	a.CRC = a.crc8()

	body, _ := restruct.Pack(defaultEncoding, &a)
	return body
}

// nvsCodec implements Codec for the legacy 8-byte-ATE format.
type nvsCodec struct{}

const (
	nvsNamecntID    uint32 = 0x8000
	nvsNameIDOffset uint32 = 0x4000
)

func (nvsCodec) Kind() CodecKind      { return KindNVS }
func (nvsCodec) NamecntID() uint32    { return nvsNamecntID }
func (nvsCodec) NameIDOffset() uint32 { return nvsNameIDOffset }
func (nvsCodec) ATESize(wbs int) int  { return roundUpToBlock(nvsATELogicalSize, wbs) }

// InitSector reserves the trailing slot a future Close ATE would occupy.
// The provisioning writer never actually seals the sector (spec: single
// initialized sector, left OPEN), so that slot stays erased.
func (nvsCodec) InitSector(w *SectorWriter) error {
	ateSize := nvsCodec{}.ATESize(w.writeBlockSize)
	return w.reserveATESlots(1, ateSize)
}

func (c nvsCodec) WriteDataATE(w *SectorWriter, writeBlockSize int, recordID uint32, data []byte) error {
	ate := nvsATEPack(recordID, w.dataOffset, len(data))
	padded := alignWithErase(ate, writeBlockSize)

	if err := w.writeATE(padded); err != nil {
		return err
	}

	aligned := alignWithErase(data, writeBlockSize)
	_, err := w.writeData(aligned)
	return err
}

func (c nvsCodec) isValidATE(a nvsATE, ateSize int) bool {
	return a.CRC == a.crc8() && int(a.DataOffset) < (SectorSize-ateSize)
}

func (c nvsCodec) isPopulated(raw []byte) bool {
	return !isErased(raw)
}

func (c nvsCodec) isCloseATE(a nvsATE, ateSize int) bool {
	if !c.isValidATE(a, ateSize) {
		return false
	}
	if a.RecordID != nvsCloseRecordID || a.DataLen != 0 {
		return false
	}

	return (SectorSize-int(a.DataOffset))%ateSize == 0
}

func (c nvsCodec) ParseSector(sector []byte, writeBlockSize int, diag Diagnostics) SectorRecords {
	if isErased(sector) {
		return SectorRecords{Status: StatusErased}
	}

	ateSize := c.ATESize(writeBlockSize)

	dataPtr := 0
	atePtr := len(sector) - ateSize

	probe := nvsATEUnpack(sector[atePtr : atePtr+ateSize])

	var status SectorStatus
	switch {
	case c.isCloseATE(probe, ateSize):
		status = StatusClosed
	case !c.isPopulated(sector[atePtr : atePtr+ateSize]):
		status = StatusOpen
	default:
		return SectorRecords{Status: StatusNA}
	}

	records := map[uint32][]byte{}

	for atePtr >= 0 {
		atePtr -= ateSize
		if atePtr < dataPtr {
			break
		}

		slot := sector[atePtr : atePtr+ateSize]
		if !c.isPopulated(slot) {
			break
		}

		ate := nvsATEUnpack(slot)
		if !c.isValidATE(ate, ateSize) {
			continue
		}

		if int(ate.DataOffset) < dataPtr {
			return SectorRecords{Status: StatusNA}
		}
		if int(ate.DataOffset)+int(ate.DataLen) >= atePtr {
			return SectorRecords{Status: StatusNA}
		}

		records[uint32(ate.RecordID)] = sector[ate.DataOffset : int(ate.DataOffset)+int(ate.DataLen)]
		dataPtr = int(ate.DataOffset) + int(ate.DataLen)
	}

	if status == StatusOpen && len(records) == 0 {
		return SectorRecords{Status: StatusNA}
	}

	return SectorRecords{Status: status, Records: records}
}
