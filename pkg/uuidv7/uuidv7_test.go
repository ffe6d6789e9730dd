package uuidv7

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestNew(t *testing.T) {
	u, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if u.Version() != 7 {
		t.Fatalf("version=%d", u.Version())
	}
	if u.Variant() != uuid.RFC4122 {
		t.Fatalf("variant=%v", u.Variant())
	}
}

func TestNewString_OrderedAndParseable(t *testing.T) {
	prev, err := NewString()
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	for range 10 {
		got, err := NewString()
		if err != nil {
			t.Fatalf("NewString: %v", err)
		}
		if _, err := uuid.Parse(got); err != nil {
			t.Fatalf("Parse(%q): %v", got, err)
		}
		if got <= prev {
			t.Fatalf("ids not ascending: %q then %q", prev, got)
		}
		prev = got
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestNewString_RandFailure(t *testing.T) {
	uuid.SetRand(failingReader{})
	defer uuid.SetRand(nil)

	if _, err := NewString(); err == nil {
		t.Fatal("expected error")
	}
}
