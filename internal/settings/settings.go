// Package settings implements the orchestration layer built on top of
// internal/nvmcodec: parsing every sector of a settings partition, ordering
// sectors oldest-to-newest around the flash ring, consolidating records
// across sectors, and pairing key/value records into a string-keyed map.
// It also exposes the inverse: writing a single initialized sector from an
// ordered list of key/value pairs.
package settings

import (
	"errors"
	"fmt"
	"sort"

	"github.com/nordicplayground/ncsfmntools/internal/nvmcodec"
)

// ErrNoRecords is returned by Read when consolidation yields zero user
// records across the whole settings range.
var ErrNoRecords = errors.New("settings: no records found")

// KV is one logical key/value pair in insertion order, the unit Write
// allocates a key_record_id for.
type KV struct {
	Key   string
	Value []byte
}

// Write provisions a single initialized sector at baseAddr within img: one
// InitSector call followed by one WriteKV per entry of kvs, identifiers
// allocated sequentially starting at NamecntID()+1 in the order kvs is
// given (spec §4.8). Multi-sector provisioning is not supported; a kvs set
// too large for one sector surfaces nvmcodec.ErrSectorOverflow.
func Write(img nvmcodec.ImageWriter, baseAddr uint32, writeBlockSize int, kind nvmcodec.CodecKind, kvs []KV) error {
	codec := nvmcodec.New(kind)
	ateSize := codec.ATESize(writeBlockSize)
	w := nvmcodec.NewSectorWriter(img, baseAddr, writeBlockSize, ateSize)

	if err := codec.InitSector(w); err != nil {
		return err
	}

	nextID := codec.NamecntID() + 1
	for _, kv := range kvs {
		if err := nvmcodec.WriteKV(codec, w, writeBlockSize, nextID, []byte(kv.Key), kv.Value); err != nil {
			return err
		}
		nextID++
	}

	return nil
}

// parsedSector pairs a sector's buffer-order index with its parse result.
type parsedSector struct {
	index   int
	records nvmcodec.SectorRecords
}

func (p parsedSector) hasRecords() bool {
	status := p.records.Status
	return status == nvmcodec.StatusOpen || status == nvmcodec.StatusClosed
}

// Read parses buf (a whole settings partition, length a multiple of
// nvmcodec.SectorSize), orders its sectors oldest-to-newest, consolidates
// every record across the ring, and pairs key/value records into a
// string-keyed map (spec §4.7). A nil diag discards every diagnostic.
func Read(buf []byte, writeBlockSize int, kind nvmcodec.CodecKind, diag nvmcodec.Diagnostics) (map[string][]byte, error) {
	codec := nvmcodec.New(kind)

	sectorCount := len(buf) / nvmcodec.SectorSize
	parsed := make([]parsedSector, sectorCount)
	for i := 0; i < sectorCount; i++ {
		sector := buf[i*nvmcodec.SectorSize : (i+1)*nvmcodec.SectorSize]
		parsed[i] = parsedSector{index: i, records: codec.ParseSector(sector, writeBlockSize, diag)}
	}

	ordered := orderOldestToNewest(parsed, diag)

	consolidated := map[uint32][]byte{}
	for _, p := range ordered {
		for id, data := range p.records.Records {
			consolidated[id] = data
		}
	}

	result := pairKeyValues(codec, consolidated, diag)
	if len(result) == 0 {
		return nil, ErrNoRecords
	}

	return result, nil
}

// orderOldestToNewest implements spec §4.7 steps 2-3: locate the
// contiguous non-empty tail, find the ring's unique CLOSED->OPEN
// transition (or fall back to "last sector in range"), and reorder so
// iteration proceeds oldest-first. Sectors with no records (ERASED/NA)
// that fall inside the range are dropped from the returned slice but still
// occupy a position for the cyclic-adjacency search.
func orderOldestToNewest(parsed []parsedSector, diag nvmcodec.Diagnostics) []parsedSector {
	firstWithRecords := -1
	for i, p := range parsed {
		if p.hasRecords() {
			firstWithRecords = i
			break
		}
	}

	if firstWithRecords == -1 {
		return nil
	}

	rng := parsed[firstWithRecords:]
	if len(rng) == 1 {
		return rng
	}

	rangeLen := len(rng)

	var transitions []int
	for i := 0; i < rangeLen; i++ {
		next := (i + 1) % rangeLen
		if rng[i].records.Status == nvmcodec.StatusClosed && rng[next].records.Status == nvmcodec.StatusOpen {
			transitions = append(transitions, i)
		}
	}

	var newestRelIdx int
	switch {
	case len(transitions) == 0:
		newestRelIdx = rangeLen - 1
	case len(transitions) == 1:
		newestRelIdx = (transitions[0] + 1) % rangeLen
	default:
		if diag != nil {
			diag.Warnf("settings: multiple closed-to-open transitions detected, using the first found")
		}
		newestRelIdx = (transitions[0] + 1) % rangeLen
	}

	start := (newestRelIdx + 1) % rangeLen

	ordered := make([]parsedSector, 0, rangeLen)
	for i := 0; i < rangeLen; i++ {
		p := rng[(start+i)%rangeLen]
		if p.hasRecords() {
			ordered = append(ordered, p)
		}
	}

	return ordered
}

// pairKeyValues implements spec §4.7 step 5.
func pairKeyValues(codec nvmcodec.Codec, consolidated map[uint32][]byte, diag nvmcodec.Diagnostics) map[string][]byte {
	ids := make([]uint32, 0, len(consolidated))
	for id := range consolidated {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := map[string][]byte{}
	for _, r := range ids {
		if !nvmcodec.IsKeyRecord(codec, r) {
			continue
		}

		key := consolidated[r]
		if len(key) == 0 {
			continue
		}

		value, ok := consolidated[r+codec.NameIDOffset()]
		if !ok || len(value) == 0 {
			continue
		}

		keyStr := string(key)
		if _, exists := result[keyStr]; exists {
			if diag != nil {
				diag.Warnf("settings: duplicate key %q, keeping last seen", keyStr)
			}
		}

		result[keyStr] = value
	}

	return result
}

// ErrInvalidRange reports a buffer whose length is not a whole number of
// sectors.
var ErrInvalidRange = fmt.Errorf("settings: buffer length is not a multiple of %d", nvmcodec.SectorSize)

// ValidateBufferLength checks the precondition Read requires.
func ValidateBufferLength(buf []byte) error {
	if len(buf)%nvmcodec.SectorSize != 0 {
		return ErrInvalidRange
	}

	return nil
}
