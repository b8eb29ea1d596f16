package nvmcodec

import "fmt"

// Codec is the tagged-variant interface the NVS and ZMS formats both
// satisfy. The settings orchestrator dispatches on CodecKind to obtain one,
// never on concrete type or inheritance (spec §9).
type Codec interface {
	Kind() CodecKind

	// ATESize returns the padded ATE slot size for the given write-block
	// size.
	ATESize(writeBlockSize int) int

	NamecntID() uint32
	NameIDOffset() uint32

	// InitSector reserves the trailing metadata slots a freshly-provisioned
	// sector needs before any data ATE can be written.
	InitSector(w *SectorWriter) error

	// WriteDataATE appends one data record (key bytes, value bytes, or the
	// name-counter payload) to the sector.
	WriteDataATE(w *SectorWriter, writeBlockSize int, recordID uint32, data []byte) error

	// ParseSector classifies and, where possible, extracts every record
	// from a single SectorSize-byte sector.
	ParseSector(sector []byte, writeBlockSize int, diag Diagnostics) SectorRecords
}

// New returns the Codec implementation for kind.
func New(kind CodecKind) Codec {
	switch kind {
	case KindNVS:
		return nvsCodec{}
	case KindZMS:
		return zmsCodec{}
	default:
		panic(fmt.Sprintf("nvmcodec: unknown codec kind %d", kind))
	}
}

// IsKeyRecord reports whether r falls in the key-record half of the
// identifier space a codec partitions: namecntID < r < namecntID+offset.
// Its paired value record lives at r+offset.
func IsKeyRecord(c Codec, r uint32) bool {
	namecnt := c.NamecntID()
	offset := c.NameIDOffset()

	return r > namecnt && r < namecnt+offset
}

// WriteKV appends one logical (key string -> value bytes) record as three
// ATEs sharing keyRecordID: the value at keyRecordID+NameIDOffset, the key
// at keyRecordID, then an overwrite of the name-counter record at NamecntID
// with the little-endian keyRecordID (spec §4.1). Value is written before
// key: if a transactional write is truncated, the reader will observe a
// value with no paired key and silently discard it, never the reverse.
func WriteKV(c Codec, w *SectorWriter, writeBlockSize int, keyRecordID uint32, key, value []byte) error {
	valueID := keyRecordID + c.NameIDOffset()

	if err := c.WriteDataATE(w, writeBlockSize, valueID, value); err != nil {
		return err
	}

	if err := c.WriteDataATE(w, writeBlockSize, keyRecordID, key); err != nil {
		return err
	}

	namecnt := make([]byte, 4)
	defaultEncoding.PutUint32(namecnt, keyRecordID)

	return c.WriteDataATE(w, writeBlockSize, c.NamecntID(), namecnt)
}
