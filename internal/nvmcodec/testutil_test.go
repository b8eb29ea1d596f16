package nvmcodec

// memImage is a single-sector, in-memory ImageWriter for exercising
// SectorWriter/Codec round trips without touching internal/ihex.
type memImage struct {
	buf [SectorSize]byte
}

func newMemImage() *memImage {
	m := &memImage{}
	for i := range m.buf {
		m.buf[i] = EraseValue
	}

	return m
}

func (m *memImage) Write(addr uint32, data []byte) {
	copy(m.buf[addr:], data)
}
