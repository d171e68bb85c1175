package diag

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDumpOnceWritesHeaderAndRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diag.csv")
	dumpOnce(path, Snapshot{ActiveSessions: 2, PacketsSent: 10, AcksSent: 3})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2 (header + row): %q", len(lines), data)
	}
	if !strings.HasPrefix(lines[0], "Unix,ActiveSessions") {
		t.Fatalf("header line = %q", lines[0])
	}
	if !strings.Contains(lines[1], ",2,10,0,0,3,") {
		t.Fatalf("row line = %q", lines[1])
	}
}

func TestDumpOnceAppendsWithoutDuplicatingHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diag.csv")
	dumpOnce(path, Snapshot{ActiveSessions: 1})
	dumpOnce(path, Snapshot{ActiveSessions: 2})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3 (header + 2 rows): %q", len(lines), data)
	}
}

func TestPeriodicCSVDumpDisabledByEmptyPath(t *testing.T) {
	stop := make(chan struct{})
	close(stop)
	// Must return immediately without touching the filesystem.
	PeriodicCSVDump("", 60, func() Snapshot { return Snapshot{} }, stop)
}
