// Package provisioning is the façade wrapping internal/settings with the
// fixed key layout spec §3/§4.8 defines for Find-My accessory provisioning:
// serial number, MFi token UUID, and MFi auth token, each addressed by a
// formatted key string.
package provisioning

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/nordicplayground/ncsfmntools/internal/device"
	"github.com/nordicplayground/ncsfmntools/internal/ihex"
	"github.com/nordicplayground/ncsfmntools/internal/nvmcodec"
	"github.com/nordicplayground/ncsfmntools/internal/settings"
)

// keyFormat is the provisioned-key format string from spec §3.
const keyFormat = "fmna/provisioning/%3d"

const (
	serialKeyID = 997
	uuidKeyID   = 998
	tokenKeyID  = 999
)

const (
	serialLen   = 16
	uuidLen     = 16
	tokenMaxLen = 1024
)

// ErrTokenTooLong rejects an auth token that would not fit in the fixed
// 1024-byte token slot.
var ErrTokenTooLong = errors.New("provisioning: token exceeds 1024 bytes")

// ErrMissingMandatoryKey surfaces a settings buffer missing the UUID or
// token record the extraction workflow requires (spec §7).
var ErrMissingMandatoryKey = errors.New("provisioning: missing UUID or token")

func serialKey() string { return fmt.Sprintf(keyFormat, serialKeyID) }
func uuidKey() string   { return fmt.Sprintf(keyFormat, uuidKeyID) }
func tokenKey() string  { return fmt.Sprintf(keyFormat, tokenKeyID) }

// Input is the set of values Provision writes into one sector.
type Input struct {
	UUID   string // canonical 8-4-4-4-12 hex, with or without dashes
	Token  []byte // raw auth token bytes, at most 1024 long
	Serial []byte // optional, at most 16 bytes; omitted if nil
}

// Extracted is what Extract recovers from a settings buffer.
type Extracted struct {
	UUID   string
	Token  []byte
	Serial []byte
}

var uuidHexRe = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)

func normalizeUUID(uuid string) (string, error) {
	stripped := strings.ReplaceAll(uuid, "-", "")
	if !uuidHexRe.MatchString(stripped) {
		return "", fmt.Errorf("provisioning: invalid UUID %q", uuid)
	}

	return strings.ToLower(stripped), nil
}

func formatUUID(hexStr string) string {
	return fmt.Sprintf("%s-%s-%s-%s-%s", hexStr[0:8], hexStr[8:12], hexStr[12:16], hexStr[16:20], hexStr[20:32])
}

// Provision builds a single initialized sector at desc's default settings
// partition base, encoding in as the UUID/token/serial provisioned keys
// (spec §4.8). Identifiers are allocated starting at NamecntID()+1 in
// insertion order: serial, then uuid, then token — matching
// cmd_provision.py's field order.
func Provision(in Input, desc device.Descriptor) (*ihex.Image, error) {
	uuidHex, err := normalizeUUID(in.UUID)
	if err != nil {
		return nil, err
	}
	// On-flash value is the 16 raw bytes, not the 32-character ASCII hex
	// string (mfi_uuid_input_handle: unhexlify(mfi_uuid.replace('-', ''))).
	rawUUID, err := hex.DecodeString(uuidHex)
	if err != nil {
		return nil, fmt.Errorf("provisioning: invalid UUID %q", in.UUID)
	}

	if len(in.Token) > tokenMaxLen {
		return nil, ErrTokenTooLong
	}
	paddedToken := make([]byte, tokenMaxLen)
	copy(paddedToken, in.Token)

	var kvs []settings.KV
	if in.Serial != nil {
		kvs = append(kvs, settings.KV{Key: serialKey(), Value: in.Serial})
	}
	kvs = append(kvs,
		settings.KV{Key: uuidKey(), Value: rawUUID},
		settings.KV{Key: tokenKey(), Value: paddedToken},
	)

	img := ihex.NewImage()
	kind := desc.Default.Kind
	if err := settings.Write(img, desc.Default.Base, desc.WriteBlockSize, kind, kvs); err != nil {
		return nil, err
	}

	return img, nil
}

// Extract parses buf (the whole settings partition, sliced to desc's
// default partition span before calling) and recovers the provisioned
// UUID and token. A missing UUID or token is ErrMissingMandatoryKey; a
// missing serial is not an error (it is optional at provision time).
func Extract(buf []byte, desc device.Descriptor, diag nvmcodec.Diagnostics) (*Extracted, error) {
	kv, err := settings.Read(buf, desc.WriteBlockSize, desc.Default.Kind, diag)
	if err != nil {
		return nil, err
	}

	rawUUID, hasUUID := kv[uuidKey()]
	rawToken, hasToken := kv[tokenKey()]
	if !hasUUID || !hasToken {
		return nil, ErrMissingMandatoryKey
	}

	result := &Extracted{
		UUID:  formatUUID(hex.EncodeToString(rawUUID)),
		Token: bytes.TrimRight(rawToken, "\x00"),
	}
	if serial, ok := kv[serialKey()]; ok {
		result.Serial = serial
	}

	return result, nil
}
