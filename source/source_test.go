package source

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/jrwynneiii/linksim/errs"
)

func TestToBitsMSBFirst(t *testing.T) {
	p := Pixels{Height: 1, Width: 1, Data: []uint8{0x80, 0x01, 0xa5}}
	want := []uint8{
		1, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 1,
		1, 0, 1, 0, 0, 1, 0, 1,
	}
	got := ToBits(p)
	if len(got) != len(want) {
		t.Fatalf("expected %d bits, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bit %d: want %d, got %d", i, want[i], got[i])
		}
	}
}

func TestBitsRoundTrip(t *testing.T) {
	p := NewPixels(2, 2)
	for i := range p.Data {
		p.Data[i] = uint8(i*37 + 5)
	}

	back, err := FromBits(ToBits(p), 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if back.Shape() != [3]int{2, 2, 3} {
		t.Errorf("shape = %v", back.Shape())
	}
	for i := range p.Data {
		if back.Data[i] != p.Data[i] {
			t.Errorf("value %d: want %d, got %d", i, p.Data[i], back.Data[i])
		}
	}
}

func TestFromBitsInvalid(t *testing.T) {
	if _, err := FromBits(make([]uint8, 95), 2, 2); !errors.Is(err, errs.ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
	if _, err := FromBits(nil, 0, 2); !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	bad := make([]uint8, 24)
	bad[3] = 2
	if _, err := FromBits(bad, 1, 1); !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSaveLoad(t *testing.T) {
	p := NewPixels(3, 4)
	for i := range p.Data {
		p.Data[i] = uint8(255 - i*7)
	}

	path := filepath.Join(t.TempDir(), "image.png")
	if err := Save(path, p); err != nil {
		t.Fatal(err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.Height != 3 || back.Width != 4 {
		t.Fatalf("loaded %dx%d", back.Width, back.Height)
	}
	for i := range p.Data {
		if back.Data[i] != p.Data[i] {
			t.Fatalf("value %d: want %d, got %d", i, p.Data[i], back.Data[i])
		}
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
