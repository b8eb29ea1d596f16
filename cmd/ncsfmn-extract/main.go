package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jessevdk/go-flags"

	"github.com/dsoprea/go-logging"
	"github.com/dustin/go-humanize"

	"github.com/nordicplayground/ncsfmntools/internal/device"
	"github.com/nordicplayground/ncsfmntools/internal/ihex"
	"github.com/nordicplayground/ncsfmntools/internal/memtool"
	"github.com/nordicplayground/ncsfmntools/internal/nvmcodec"
	"github.com/nordicplayground/ncsfmntools/internal/provisioning"
)

type rootParameters struct {
	Device  string `short:"e" long:"device" description:"Target device (see catalog)" required:"true"`
	Input   string `short:"i" long:"input" description:"Dump file to read (.hex or .bin); omit to read a live device"`
	Base    string `short:"f" long:"base" description:"Override settings partition base address (hex)"`
	Size    string `short:"s" long:"size" description:"Override settings partition size (hex)"`
	Storage string `short:"n" long:"storage" description:"Override storage format: NVS or ZMS"`
	Overlay string `long:"overlay" description:"YAML device catalog overlay file"`
	Serial  string `long:"serial" description:"Serial number of the device to read, when more than one is attached"`
	Tool    string `long:"tool" description:"Device memory reader binary" default:"nrfutil"`
}

var rootArguments = new(rootParameters)

type warnDiagnostics struct{}

func (warnDiagnostics) Warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}

func parseHexUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 32)
	if err != nil {
		return 0, err
	}

	return uint32(v), nil
}

func resolvePartition(desc device.Descriptor) (device.Partition, error) {
	var base, size *uint32

	if rootArguments.Base != "" {
		v, err := parseHexUint32(rootArguments.Base)
		if err != nil {
			return device.Partition{}, err
		}
		base = &v
	}
	if rootArguments.Size != "" {
		v, err := parseHexUint32(rootArguments.Size)
		if err != nil {
			return device.Partition{}, err
		}
		size = &v
	}

	partition, err := device.ResolvePartition(desc, base, size)
	if err != nil {
		return device.Partition{}, err
	}

	if rootArguments.Storage != "" {
		switch rootArguments.Storage {
		case "NVS":
			partition.Kind = nvmcodec.KindNVS
		case "ZMS":
			partition.Kind = nvmcodec.KindZMS
		default:
			return device.Partition{}, fmt.Errorf("unknown storage format: %s", rootArguments.Storage)
		}
	}

	return partition, nil
}

// readLive picks a serial number (the explicit --serial flag, the sole
// attached device, or a reported list if more than one is attached and
// none was chosen) and reads the partition span off it. Reproduces
// cmd_extract.py's device-selection rule, minus the interactive stdin
// prompt (out of scope; see SPEC_FULL.md §9).
func readLive(ctx context.Context, partition device.Partition) ([]byte, error) {
	tool := memtool.CLITool{Binary: rootArguments.Tool}

	serial := rootArguments.Serial
	if serial == "" {
		serials, err := tool.ListSerials(ctx)
		if err != nil {
			return nil, err
		}

		switch len(serials) {
		case 0:
			return nil, fmt.Errorf("no devices attached")
		case 1:
			serial = serials[0]
		default:
			return nil, fmt.Errorf("multiple devices attached, specify --serial: %s", strings.Join(serials, ", "))
		}
	}

	return tool.Read(ctx, serial, partition.Base, partition.Size)
}

func main() {
	defer func() {
		if state := recover(); state != nil {
			err := log.Wrap(state.(error))
			log.PrintError(err)
			os.Exit(1)
		}
	}()

	p := flags.NewParser(rootArguments, flags.Default)

	_, err := p.Parse()
	if err != nil {
		os.Exit(1)
	}

	catalog := device.Builtin()
	if rootArguments.Overlay != "" {
		catalog, err = device.LoadOverlay(rootArguments.Overlay)
		log.PanicIf(err)
	}

	desc, ok := catalog[rootArguments.Device]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown device: %s\n", rootArguments.Device)
		os.Exit(1)
	}

	partition, err := resolvePartition(desc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid partition: %v\n", err)
		os.Exit(1)
	}
	desc.Default = partition

	var buf []byte
	if rootArguments.Input != "" {
		buf, err = ihex.LoadBytes(rootArguments.Input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading %s: %v\n", rootArguments.Input, err)
			os.Exit(1)
		}
	} else {
		buf, err = readLive(context.Background(), partition)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading device: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Fprintf(os.Stderr, "read %s from partition at 0x%x\n", humanize.Bytes(uint64(len(buf))), partition.Base)

	out, err := provisioning.Extract(buf, desc, warnDiagnostics{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "extraction failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("uuid:   %s\n", out.UUID)
	fmt.Printf("token:  %s\n", hex.EncodeToString(out.Token))
	if out.Serial != nil {
		fmt.Printf("serial: %s\n", hex.EncodeToString(out.Serial))
	}
}
