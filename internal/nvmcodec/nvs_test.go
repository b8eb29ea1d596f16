package nvmcodec

import (
	"bytes"
	"testing"
)

const nvsWriteBlockSize = 4

func TestNVS_WriteThenParse_RoundTrip(t *testing.T) {
	img := newMemImage()
	codec := nvsCodec{}
	ateSize := codec.ATESize(nvsWriteBlockSize)
	w := NewSectorWriter(img, 0, nvsWriteBlockSize, ateSize)

	if err := codec.InitSector(w); err != nil {
		t.Fatalf("InitSector: %v", err)
	}

	const keyRecordID = 0x8001
	key := []byte("fmna/provisioning/997")
	value := []byte("012345670123456701234567")

	if err := WriteKV(codec, w, nvsWriteBlockSize, keyRecordID, key, value); err != nil {
		t.Fatalf("WriteKV: %v", err)
	}

	result := codec.ParseSector(img.buf[:], nvsWriteBlockSize, nil)
	if result.Status != StatusOpen {
		t.Fatalf("status = %v, want OPEN", result.Status)
	}

	if !bytes.Equal(result.Records[keyRecordID], key) {
		t.Errorf("key record = %q, want %q", result.Records[keyRecordID], key)
	}
	if !bytes.Equal(result.Records[keyRecordID+codec.NameIDOffset()], value) {
		t.Errorf("value record = %q, want %q", result.Records[keyRecordID+codec.NameIDOffset()], value)
	}

	namecnt := result.Records[codec.NamecntID()]
	if defaultEncoding.Uint32(namecnt) != keyRecordID {
		t.Errorf("namecnt = %#x, want %#x", namecnt, keyRecordID)
	}
}

func TestNVS_ErasedSector(t *testing.T) {
	img := newMemImage()
	codec := nvsCodec{}

	result := codec.ParseSector(img.buf[:], nvsWriteBlockSize, nil)
	if result.Status != StatusErased {
		t.Fatalf("status = %v, want ERASED", result.Status)
	}
}

func TestNVS_MalformedCloseATE_IsNA(t *testing.T) {
	img := newMemImage()
	codec := nvsCodec{}
	ateSize := codec.ATESize(nvsWriteBlockSize)

	// A close-shaped ATE whose CRC does not match its own body must not be
	// mistaken for a valid sector.
	tail := ateSize
	ate := nvsATEPack(nvsCloseRecordID, SectorSize-ateSize, 0)
	ate[len(ate)-1] ^= 0xff // corrupt the CRC byte
	copy(img.buf[SectorSize-tail:], ate)

	result := codec.ParseSector(img.buf[:], nvsWriteBlockSize, nil)
	if result.Status != StatusNA {
		t.Fatalf("status = %v, want NA", result.Status)
	}
}

func TestNVS_OpenWithNoRecords_IsNA(t *testing.T) {
	img := newMemImage()
	codec := nvsCodec{}
	ateSize := codec.ATESize(nvsWriteBlockSize)
	w := NewSectorWriter(img, 0, nvsWriteBlockSize, ateSize)

	if err := codec.InitSector(w); err != nil {
		t.Fatalf("InitSector: %v", err)
	}

	// A populated but CRC-invalid ATE in the first data slot makes the
	// sector non-erased while leaving it with no valid records.
	bad := nvsATEPack(0x8001, 0, 0)
	bad[len(bad)-1] ^= 0xff
	copy(img.buf[SectorSize-2*ateSize:], bad)

	// Open-with-no-records is NA for NVS, ERASED for ZMS (preserved
	// asymmetry, see DESIGN.md).
	result := codec.ParseSector(img.buf[:], nvsWriteBlockSize, nil)
	if result.Status != StatusNA {
		t.Fatalf("status = %v, want NA", result.Status)
	}
}
