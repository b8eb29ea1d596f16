package device

import (
	"os"

	"gopkg.in/yaml.v2"

	"github.com/nordicplayground/ncsfmntools/internal/nvmcodec"
)

// overlayEntry is the YAML shape of one device catalog entry, mirroring
// Descriptor field-for-field (see dswarbrick-smart's drivedb YAML tagging
// convention).
type overlayEntry struct {
	NVMBase        uint32 `yaml:"nvm_base"`
	NVMSize        uint32 `yaml:"nvm_size"`
	WriteBlockSize int    `yaml:"write_block_size"`
	PartitionBase  uint32 `yaml:"partition_base"`
	PartitionSize  uint32 `yaml:"partition_size"`
	Storage        string `yaml:"storage"`
}

func (e overlayEntry) codecKind() (nvmcodec.CodecKind, error) {
	switch e.Storage {
	case "NVS":
		return nvmcodec.KindNVS, nil
	case "ZMS":
		return nvmcodec.KindZMS, nil
	default:
		return 0, nvmcodec.NewGeometryError("unknown storage format %q", e.Storage)
	}
}

// LoadOverlay parses a YAML document mapping device name to overlayEntry
// and merges it into the built-in catalog: new names are added, existing
// names are replaced wholesale. Every overlay entry is validated against
// the same geometry invariants as built-in ones (spec §3); a violating
// entry rejects the whole load with nvmcodec.ErrInvalidGeometry, rather
// than partially merging.
func LoadOverlay(path string) (Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries map[string]overlayEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}

	out := Builtin()

	for name, e := range entries {
		kind, err := e.codecKind()
		if err != nil {
			return nil, err
		}

		d := Descriptor{
			Name:           name,
			NVMBase:        e.NVMBase,
			NVMSize:        e.NVMSize,
			WriteBlockSize: e.WriteBlockSize,
			Default: Partition{
				Base: e.PartitionBase,
				Size: e.PartitionSize,
				Kind: kind,
			},
		}

		if err := validateGeometry(d, d.Default); err != nil {
			return nil, err
		}

		out[name] = d
	}

	return out, nil
}
