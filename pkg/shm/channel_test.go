package shm

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"main/pkg/exception"
)

func tempChannel(t *testing.T) *Channel {
	t.Helper()
	ch, err := CreateAt(filepath.Join(t.TempDir(), "chan"))
	if err != nil {
		t.Fatalf("CreateAt: %v", err)
	}
	t.Cleanup(func() { ch.Close() })
	return ch
}

func TestWriteReadRoundTrip(t *testing.T) {
	ch := tempChannel(t)

	payload := []byte(`{"symbol":"BTCUSDT","side":"BUY","type":"MARKET","quantity":"0.001"}`)
	if err := ch.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, ok := ch.Read(nil)
	if !ok {
		t.Fatal("Read: not ready after write")
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("Read mismatch: got %q want %q", got, payload)
	}

	// second read of the same record is still valid; only Clear consumes
	if _, ok := ch.Read(nil); !ok {
		t.Fatal("Read: record should remain readable until cleared")
	}
}

func TestReadEmptyNotReady(t *testing.T) {
	ch := tempChannel(t)
	if _, ok := ch.Read(nil); ok {
		t.Fatal("Read: fresh channel must not be ready")
	}
}

func TestClearConsumes(t *testing.T) {
	ch := tempChannel(t)
	if err := ch.Write([]byte("abc")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	ch.Clear()
	if _, ok := ch.Read(nil); ok {
		t.Fatal("Read: must not be ready after Clear")
	}
	if err := ch.Write([]byte("def")); err != nil {
		t.Fatalf("Write after Clear: %v", err)
	}
	got, ok := ch.Read(nil)
	if !ok || string(got) != "def" {
		t.Fatalf("Read after rewrite: got %q ready=%v", got, ok)
	}
}

func TestWritePayloadTooLarge(t *testing.T) {
	ch := tempChannel(t)
	if err := ch.Write(make([]byte, MaxPayload+1)); err != exception.ErrPayloadTooLarge {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if err := ch.Write(make([]byte, MaxPayload)); err != nil {
		t.Fatalf("Write at capacity: %v", err)
	}
}

func TestReadSkipsInProgressWrite(t *testing.T) {
	ch := tempChannel(t)
	if err := ch.Write([]byte("stable")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Poke an odd version into the region, as if a writer died mid-write.
	file, err := os.OpenFile(ch.Path(), os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("open region: %v", err)
	}
	defer file.Close()
	if _, err := file.WriteAt([]byte{3, 0, 0, 0, 0, 0, 0, 0}, versionOffset); err != nil {
		t.Fatalf("poke version: %v", err)
	}

	if _, ok := ch.Read(nil); ok {
		t.Fatal("Read: odd version must not be ready")
	}
}

func TestAttachRequiresExistingRegion(t *testing.T) {
	if _, err := AttachAt(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("AttachAt: expected error for missing region")
	}
}

func TestLastWriteWins(t *testing.T) {
	ch := tempChannel(t)
	if err := ch.Write([]byte("first")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := ch.Write([]byte("second")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, ok := ch.Read(nil)
	if !ok || string(got) != "second" {
		t.Fatalf("Read: got %q ready=%v, want second", got, ok)
	}
}

// A reader racing a writer must only ever observe complete payloads. Each
// write fills the record with a single repeated byte, so any mix of two
// writes is detectable.
func TestConcurrentReaderNeverSeesTornPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "race")
	writer, err := CreateAt(path)
	if err != nil {
		t.Fatalf("CreateAt: %v", err)
	}
	defer writer.Close()
	reader, err := AttachAt(path)
	if err != nil {
		t.Fatalf("AttachAt: %v", err)
	}
	defer reader.Close()

	const iterations = 5000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		record := make([]byte, 512)
		for i := 0; i < iterations; i++ {
			fill := byte('a' + i%26)
			for j := range record {
				record[j] = fill
			}
			if err := writer.Write(record); err != nil {
				t.Errorf("Write: %v", err)
				return
			}
		}
	}()

	buf := make([]byte, MaxPayload)
	for i := 0; i < iterations; i++ {
		payload, ok := reader.Read(buf)
		if !ok {
			continue
		}
		fill := payload[0]
		for j, b := range payload {
			if b != fill {
				t.Fatalf("torn payload at byte %d: %q vs %q", j, b, fill)
			}
		}
	}
	wg.Wait()
}
