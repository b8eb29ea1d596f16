package memtool

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// fakeNrfutil writes a tiny shell script that mimics nrfutil's --json
// output shape closely enough to exercise CLITool's parsing.
func fakeNrfutil(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake CLI tool is a POSIX shell script")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "fake-nrfutil")
	script := `#!/bin/sh
if [ "$1" = "device" ] && [ "$2" = "list" ]; then
  echo '{"devices":[{"serialNumber":"1020304050"}]}'
elif [ "$1" = "device" ] && [ "$2" = "x-read" ]; then
  echo '{"devices":[{"memoryData":[{"values":[1,2,3,255]}]}]}'
fi
`
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	return path
}

func TestCLITool_ListSerials(t *testing.T) {
	tool := CLITool{Binary: fakeNrfutil(t)}

	serials, err := tool.ListSerials(context.Background())
	if err != nil {
		t.Fatalf("ListSerials: %v", err)
	}
	if len(serials) != 1 || serials[0] != "1020304050" {
		t.Errorf("serials = %v, want [1020304050]", serials)
	}
}

func TestCLITool_Read(t *testing.T) {
	tool := CLITool{Binary: fakeNrfutil(t)}

	data, err := tool.Read(context.Background(), "1020304050", 0xFE000, 4)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	want := []byte{1, 2, 3, 255}
	if !bytes.Equal(data, want) {
		t.Errorf("data = %v, want %v", data, want)
	}
}
