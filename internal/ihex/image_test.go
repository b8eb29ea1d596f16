package ihex

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/nordicplayground/ncsfmntools/internal/nvmcodec"
)

func TestImage_WriteThenToIntelHex_RoundTripsThroughLoadBytes(t *testing.T) {
	img := NewImage()
	payload := bytes.Repeat([]byte{0xab}, 64)
	img.Write(0x1000, payload)

	var buf bytes.Buffer
	if err := img.ToIntelHex(&buf); err != nil {
		t.Fatalf("ToIntelHex: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "out.hex")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loaded, err := LoadBytes(path)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}

	// LoadBytes flattens relative to the lowest address present (0x1000
	// here), not absolute address 0.
	if len(loaded) < len(payload) {
		t.Fatalf("loaded buffer too short: %d bytes", len(loaded))
	}
	if !bytes.Equal(loaded[:len(payload)], payload) {
		t.Errorf("round-tripped payload mismatch")
	}
	if len(loaded)%nvmcodec.SectorSize != 0 {
		t.Errorf("loaded length %d is not sector-aligned", len(loaded))
	}
}

func TestLoadBytes_BinFile_PaddedToSector(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")
	raw := bytes.Repeat([]byte{0x11}, 10)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loaded, err := LoadBytes(path)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if len(loaded) != nvmcodec.SectorSize {
		t.Errorf("len = %d, want %d", len(loaded), nvmcodec.SectorSize)
	}
	if !bytes.Equal(loaded[:len(raw)], raw) {
		t.Errorf("leading bytes mismatch")
	}
	if loaded[len(raw)] != nvmcodec.EraseValue {
		t.Errorf("padding byte = %#x, want erase value", loaded[len(raw)])
	}
}
