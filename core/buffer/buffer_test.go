// File: core/buffer/buffer_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/momentics/hioload-http/core/buffer"
)

func TestWriteReadRoundTrip(t *testing.T) {
	b := buffer.New()
	payload := []byte("hello reactor")
	b.WriteAndPush(payload)

	got := b.ReadAndPop(len(payload))
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: got %q want %q", got, payload)
	}
	if b.Readable() != 0 {
		t.Errorf("Readable() = %d after full drain, want 0", b.Readable())
	}
}

func TestWriteWithoutPushDoesNotAdvance(t *testing.T) {
	b := buffer.New()
	b.Write([]byte("staged"))
	if b.Readable() != 0 {
		t.Fatalf("Write must not advance the write cursor, Readable() = %d", b.Readable())
	}
	b.MoveWriteOffset(6)
	if got := b.ReadStringAndPop(6); got != "staged" {
		t.Errorf("got %q want %q", got, "staged")
	}
}

func TestCompactionReclaimsHeadSpace(t *testing.T) {
	b := buffer.New()
	b.WriteStringAndPush(strings.Repeat("x", buffer.DefaultSize))
	b.MoveReadOffset(buffer.DefaultSize - 16)

	// Tail space is exhausted but head space suffices; the write must
	// compact instead of growing.
	b.WriteStringAndPush(strings.Repeat("y", 100))
	if b.HeadFree() != 0 {
		t.Errorf("HeadFree() = %d after compaction, want 0", b.HeadFree())
	}
	if b.Readable() != 116 {
		t.Errorf("Readable() = %d, want 116", b.Readable())
	}
	want := strings.Repeat("x", 16) + strings.Repeat("y", 100)
	if got := b.ReadStringAndPop(116); got != want {
		t.Errorf("compaction corrupted data")
	}
}

func TestGrowthPreservesData(t *testing.T) {
	b := buffer.New()
	big := strings.Repeat("z", buffer.DefaultSize*3)
	b.WriteStringAndPush(big)
	if got := b.ReadStringAndPop(len(big)); got != big {
		t.Fatalf("growth corrupted data")
	}
}

func TestGetLineAndPop(t *testing.T) {
	b := buffer.New()
	b.WriteStringAndPush("GET / HTTP/1.1\r\nHost: x\r\n\r\npartial")

	cases := []string{"GET / HTTP/1.1\r\n", "Host: x\r\n", "\r\n"}
	for _, want := range cases {
		if got := b.GetLineAndPop(); got != want {
			t.Fatalf("GetLineAndPop() = %q, want %q", got, want)
		}
	}
	// No trailing newline: the remainder is not a line yet.
	if got := b.GetLineAndPop(); got != "" {
		t.Errorf("GetLineAndPop() on partial line = %q, want empty", got)
	}
	if b.Readable() != len("partial") {
		t.Errorf("partial data must stay buffered, Readable() = %d", b.Readable())
	}
}

func TestClear(t *testing.T) {
	b := buffer.New()
	b.WriteStringAndPush("data")
	b.Clear()
	if b.Readable() != 0 || b.HeadFree() != 0 {
		t.Errorf("Clear must reset both cursors")
	}
}
