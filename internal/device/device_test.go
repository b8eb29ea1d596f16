package device

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nordicplayground/ncsfmntools/internal/nvmcodec"
)

func TestLookup_KnownDevice(t *testing.T) {
	d, err := Lookup("NRF52840")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if d.Default.Kind != nvmcodec.KindNVS {
		t.Errorf("kind = %v, want NVS", d.Default.Kind)
	}
}

func TestLookup_UnknownDevice(t *testing.T) {
	if _, err := Lookup("NRF00000"); err == nil {
		t.Fatal("expected an error for an unknown device")
	}
}

func TestResolvePartition_DefaultsToDeviceDescriptor(t *testing.T) {
	d, _ := Lookup("NRF5340")

	p, err := ResolvePartition(d, nil, nil)
	if err != nil {
		t.Fatalf("ResolvePartition: %v", err)
	}
	if p != d.Default {
		t.Errorf("p = %+v, want %+v", p, d.Default)
	}
}

func TestResolvePartition_BaseOnly_DefaultsSizeToEndOfNVM(t *testing.T) {
	d, _ := Lookup("NRF52840")
	base := uint32(0xFE000)

	p, err := ResolvePartition(d, &base, nil)
	if err != nil {
		t.Fatalf("ResolvePartition: %v", err)
	}
	if p.Size != d.NVMSize-base {
		t.Errorf("size = %#x, want %#x", p.Size, d.NVMSize-base)
	}
}

func TestResolvePartition_RejectsMisalignedBase(t *testing.T) {
	d, _ := Lookup("NRF52840")
	base := uint32(0xFE001)

	_, err := ResolvePartition(d, &base, nil)
	if !errors.Is(err, nvmcodec.ErrInvalidGeometry) {
		t.Fatalf("err = %v, want ErrInvalidGeometry", err)
	}
}

func TestLoadOverlay_RejectsMisalignedPartition(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.yaml")
	contents := `
FICTDEV:
  nvm_base: 0
  nvm_size: 0x40000
  write_block_size: 4
  partition_base: 0x3E001
  partition_size: 0x2000
  storage: NVS
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := LoadOverlay(path); !errors.Is(err, nvmcodec.ErrInvalidGeometry) {
		t.Fatalf("err = %v, want ErrInvalidGeometry", err)
	}
}

func TestLoadOverlay_AddsValidDevice(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.yaml")
	contents := `
FICTDEV:
  nvm_base: 0
  nvm_size: 0x40000
  write_block_size: 4
  partition_base: 0x3E000
  partition_size: 0x2000
  storage: NVS
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	catalog, err := LoadOverlay(path)
	if err != nil {
		t.Fatalf("LoadOverlay: %v", err)
	}

	d, ok := catalog["FICTDEV"]
	if !ok {
		t.Fatal("overlay device missing from merged catalog")
	}
	if d.Default.Base != 0x3E000 {
		t.Errorf("base = %#x, want 0x3E000", d.Default.Base)
	}

	if _, ok := catalog["NRF52840"]; !ok {
		t.Error("built-in device dropped from merged catalog")
	}
}
