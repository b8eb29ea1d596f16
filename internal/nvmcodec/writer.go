package nvmcodec

// SectorWriter owns the two cursors of a single sector being provisioned:
// ateOffset grows downward from the sector tail as ATE slots are consumed,
// dataOffset grows upward from the sector base as payload blocks are
// appended. Both are encapsulated here as instance state, never package
// globals (spec §9).
type SectorWriter struct {
	img            ImageWriter
	baseAddr       uint32
	writeBlockSize int

	ateOffset  int
	dataOffset int
}

// NewSectorWriter starts a writer for one SectorSize-bytes sector located at
// baseAddr within img. ateOffset begins at the last ATE slot; dataOffset
// begins at the sector base.
func NewSectorWriter(img ImageWriter, baseAddr uint32, writeBlockSize, ateSize int) *SectorWriter {
	return &SectorWriter{
		img:            img,
		baseAddr:       baseAddr,
		writeBlockSize: writeBlockSize,
		ateOffset:      SectorSize - ateSize,
		dataOffset:     0,
	}
}

// verify enforces the sector invariant (P3): ate_offset >= data_offset.
// Multi-sector provisioning is not supported, so a violation is fatal.
func (w *SectorWriter) verify() error {
	if w.ateOffset < w.dataOffset {
		return newOverflowError("ate_offset %d < data_offset %d", w.ateOffset, w.dataOffset)
	}

	return nil
}

// reserveATESlots moves ateOffset down by n padded ATE slots without writing
// anything, for the trailing metadata slots a codec leaves erased (the
// future Close ATE, and for ZMS the future GC-done ATE too).
func (w *SectorWriter) reserveATESlots(n, ateSize int) error {
	w.ateOffset -= n * ateSize
	return w.verify()
}

// writeATE places already-serialized, write-block-padded ATE bytes at the
// current ateOffset, then advances the cursor downward.
func (w *SectorWriter) writeATE(serialized []byte) error {
	w.img.Write(w.baseAddr+uint32(w.ateOffset), serialized)
	w.ateOffset -= len(serialized)
	return w.verify()
}

// writeData places already write-block-aligned payload bytes at the
// current dataOffset, then advances the cursor upward. Returns the offset
// the data was written at, for the caller's ATE content field.
func (w *SectorWriter) writeData(aligned []byte) (offset int, err error) {
	offset = w.dataOffset
	w.img.Write(w.baseAddr+uint32(offset), aligned)
	w.dataOffset += len(aligned)

	return offset, w.verify()
}
