package ramarena

import (
	"testing"

	"github.com/pkg/errors"
)

func TestAlloc_GrowsBumpPointer(t *testing.T) {
	a := New(100)
	tok1, region1, err := a.Alloc(40)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if len(region1) != 40 {
		t.Fatalf("len(region1) = %d, want 40", len(region1))
	}
	if a.Len() != 40 {
		t.Fatalf("Len() = %d, want 40", a.Len())
	}

	tok2, region2, err := a.Alloc(30)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if a.Len() != 70 {
		t.Fatalf("Len() = %d, want 70", a.Len())
	}
	_ = tok1
	_ = tok2
	_ = region2
}

func TestAlloc_ReturnsZeroedMemory(t *testing.T) {
	a := New(16)
	_, region, err := a.Alloc(16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	for i, b := range region {
		if b != 0 {
			t.Fatalf("region[%d] = %d, want 0", i, b)
		}
	}
}

func TestAlloc_FailsWhenExhausted(t *testing.T) {
	a := New(10)
	if _, _, err := a.Alloc(11); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("got %v, want ErrOutOfMemory", err)
	}
}

func TestAlloc_RejectsNonPositiveSize(t *testing.T) {
	a := New(10)
	if _, _, err := a.Alloc(0); err == nil {
		t.Fatalf("expected error for zero-size alloc")
	}
}

func TestFree_LIFOOrder(t *testing.T) {
	a := New(100)
	tok1, _, _ := a.Alloc(20)
	tok2, _, _ := a.Alloc(30)

	if err := a.Free(tok2); err != nil {
		t.Fatalf("Free(tok2): %v", err)
	}
	if a.Len() != 20 {
		t.Fatalf("Len() = %d, want 20", a.Len())
	}
	if err := a.Free(tok1); err != nil {
		t.Fatalf("Free(tok1): %v", err)
	}
	if a.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", a.Len())
	}
}

func TestFree_RejectsOutOfOrder(t *testing.T) {
	a := New(100)
	tok1, _, _ := a.Alloc(20)
	_, _, _ = a.Alloc(30)

	if err := a.Free(tok1); !errors.Is(err, ErrNotLIFO) {
		t.Fatalf("got %v, want ErrNotLIFO", err)
	}
}

func TestFree_RejectsOnEmptyArena(t *testing.T) {
	a := New(10)
	if err := a.Free(Token{}); !errors.Is(err, ErrNotLIFO) {
		t.Fatalf("got %v, want ErrNotLIFO", err)
	}
}

func TestAlloc_ReusesSpaceAfterFree(t *testing.T) {
	a := New(10)
	tok, _, err := a.Alloc(10)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := a.Free(tok); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if _, _, err := a.Alloc(10); err != nil {
		t.Fatalf("Alloc after free: %v", err)
	}
}
