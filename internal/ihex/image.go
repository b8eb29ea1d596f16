// Package ihex is the byte-transport adapter between nvmcodec's sparse
// sector writes and the Intel-HEX container format used to carry them,
// delegating the actual HEX encode/decode to github.com/marcinbor85/gohex
// (spec §6: "IHEX handling is delegated to an external library").
package ihex

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcinbor85/gohex"

	"github.com/dsoprea/go-logging"

	"github.com/nordicplayground/ncsfmntools/internal/nvmcodec"
)

const dumpLineLen = 16

// Image is the sparse byte-addressed map-of-spans a codec writes into.
// It satisfies nvmcodec.ImageWriter without that package importing gohex.
type Image struct {
	mem *gohex.Memory
}

// NewImage returns an empty sparse image.
func NewImage() *Image {
	return &Image{mem: gohex.NewMemory()}
}

// Write appends one already-aligned span. The codec never produces
// overlapping spans within a single sector write, so a failure here would
// indicate a codec defect, not a recoverable input error.
func (img *Image) Write(addr uint32, data []byte) {
	err := img.mem.AddBinary(addr, data)
	log.PanicIf(err)
}

// ToIntelHex serializes the image as an Intel-HEX file.
func (img *Image) ToIntelHex(w io.Writer) error {
	return img.mem.DumpIntelHex(w, dumpLineLen)
}

// MergeFile loads an existing Intel-HEX file and layers it underneath this
// image's own spans — anything already written to img takes precedence,
// matching cmd_provision.py's merge_hex_files (the newly-provisioned
// sector always wins over whatever the input hex file held at that span).
func (img *Image) MergeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	base := gohex.NewMemory()
	if err := base.ParseIntelHex(f); err != nil {
		return err
	}

	merged := gohex.NewMemory()
	for _, seg := range base.Segments {
		if err := merged.AddBinary(seg.Address, seg.Data); err != nil {
			return err
		}
	}
	for _, seg := range img.mem.Segments {
		if err := merged.AddBinary(seg.Address, seg.Data); err != nil {
			return err
		}
	}

	img.mem = merged
	return nil
}

// LoadBytes reads either a .hex file (via gohex, flattened to a single
// buffer covering the lowest through the highest address written, gaps padded
// with the erase value) or any other file treated as a raw binary dump —
// distinguished by suffix, matching cmd_extract.py's load_from_file — then
// pads the result up to the next sector-size boundary.
func LoadBytes(path string) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".hex") {
		return loadHex(path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return padToSector(raw), nil
}

func loadHex(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(f); err != nil {
		return nil, err
	}

	if len(mem.Segments) == 0 {
		return nil, nil
	}

	minAddr := mem.Segments[0].Address
	var maxAddr uint32
	for _, seg := range mem.Segments {
		if seg.Address < minAddr {
			minAddr = seg.Address
		}
		end := seg.Address + uint32(len(seg.Data))
		if end > maxAddr {
			maxAddr = end
		}
	}

	// Addresses are taken relative to the lowest one present, not 0: a
	// dump typically covers just the settings partition itself, not the
	// whole NVM, so its lowest address is the partition base, not 0.
	buf := make([]byte, maxAddr-minAddr)
	for i := range buf {
		buf[i] = nvmcodec.EraseValue
	}
	for _, seg := range mem.Segments {
		copy(buf[seg.Address-minAddr:], seg.Data)
	}

	return padToSector(buf), nil
}

func padToSector(buf []byte) []byte {
	remainder := len(buf) % nvmcodec.SectorSize
	if remainder == 0 {
		return buf
	}

	padding := nvmcodec.SectorSize - remainder
	out := make([]byte, len(buf)+padding)
	copy(out, buf)
	for i := len(buf); i < len(out); i++ {
		out[i] = nvmcodec.EraseValue
	}

	return out
}
