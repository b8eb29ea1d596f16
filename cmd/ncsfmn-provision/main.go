package main

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jessevdk/go-flags"

	"github.com/dsoprea/go-logging"

	"github.com/nordicplayground/ncsfmntools/internal/device"
	"github.com/nordicplayground/ncsfmntools/internal/nvmcodec"
	"github.com/nordicplayground/ncsfmntools/internal/provisioning"
)

type rootParameters struct {
	UUID        string `short:"u" long:"uuid" description:"MFi token UUID" required:"true"`
	TokenBase64 string `short:"m" long:"mfi-token" description:"Base64-encoded MFi auth token" required:"true"`
	Serial      string `short:"s" long:"serial" description:"Hex-encoded serial number (optional)"`
	Device      string `short:"e" long:"device" description:"Target device (see catalog)" required:"true"`
	Base        string `short:"f" long:"base" description:"Override settings partition base address (hex)"`
	InputHex    string `short:"x" long:"input-hex-file" description:"Existing Intel-HEX file to merge the provisioned sector into"`
	Storage     string `short:"n" long:"storage" description:"Override storage format: NVS or ZMS"`
	Overlay     string `long:"overlay" description:"YAML device catalog overlay file"`
	Output      string `short:"o" long:"output" description:"Output Intel-HEX file" required:"true"`
}

var rootArguments = new(rootParameters)

func parseHexUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 32)
	if err != nil {
		return 0, err
	}

	return uint32(v), nil
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

	if rootArguments.Storage != "" {
		switch rootArguments.Storage {
		case "NVS":
			desc.Default.Kind = nvmcodec.KindNVS
		case "ZMS":
			desc.Default.Kind = nvmcodec.KindZMS
		default:
			fmt.Fprintf(os.Stderr, "unknown storage format: %s\n", rootArguments.Storage)
			os.Exit(1)
		}
	}

	if rootArguments.Base != "" {
		base, err := parseHexUint32(rootArguments.Base)
		log.PanicIf(err)
		desc.Default.Base = base
	}

	token, err := base64.StdEncoding.DecodeString(rootArguments.TokenBase64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid base64 token: %v\n", err)
		os.Exit(1)
	}

	in := provisioning.Input{UUID: rootArguments.UUID, Token: token}
	if rootArguments.Serial != "" {
		serial, err := hex.DecodeString(rootArguments.Serial)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid hex serial: %v\n", err)
			os.Exit(1)
		}
		in.Serial = serial
	}

	img, err := provisioning.Provision(in, desc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "provisioning failed: %v\n", err)
		os.Exit(1)
	}

	if rootArguments.InputHex != "" {
		err := img.MergeFile(rootArguments.InputHex)
		log.PanicIf(err)
	}

	out, err := os.Create(rootArguments.Output)
	log.PanicIf(err)
	defer out.Close()

	err = img.ToIntelHex(out)
	log.PanicIf(err)
}
