// Package ramarena implements a bump allocator over a single fixed-size
// byte region, the sole allocation strategy the scan-out pipeline uses for
// its framebuffer and any other mode-lifetime memory.
//
// Heap fragmentation is intolerable given the framebuffer's dominant
// size, so allocation only ever grows a bump pointer and release only
// ever happens in LIFO order, matching the mode start/stop lifecycle.
package ramarena

import "github.com/pkg/errors"

// ErrOutOfMemory is returned when Alloc cannot satisfy a request from the
// remaining region.
var ErrOutOfMemory = errors.New("ramarena: out of memory")

// ErrNotLIFO is returned by Free when token is not the most recently
// allocated, still-live token.
var ErrNotLIFO = errors.New("ramarena: free out of LIFO order")

// Token is an opaque handle to a live allocation. It cannot be forged: the
// only way to obtain one is a successful call to Arena.Alloc, and the
// arena validates it against its own bookkeeping on Free, so a caller can
// never free memory it doesn't own or free the same token twice.
type Token struct {
	offset int
	size   int
	gen    uint64
}

// Arena is a bump allocator over a single fixed-size region. It is not
// safe for concurrent use: the scan-out pipeline touches it only from the
// task performing mode setup/teardown.
type Arena struct {
	buf  []byte
	next int
	live []Token
	gen  uint64
}

// New allocates the backing region of the given size and returns an empty
// Arena over it.
func New(size int) *Arena {
	return &Arena{buf: make([]byte, size)}
}

// Cap returns the total size of the backing region.
func (a *Arena) Cap() int { return len(a.buf) }

// Len returns the number of bytes currently allocated.
func (a *Arena) Len() int { return a.next }

// Alloc reserves n bytes and returns a Token for them along with the
// backing slice. The slice is zeroed.
func (a *Arena) Alloc(n int) (Token, []byte, error) {
	if n <= 0 {
		return Token{}, nil, errors.Errorf("ramarena: alloc size must be positive, got %d", n)
	}
	if a.next+n > len(a.buf) {
		return Token{}, nil, errors.Wrapf(ErrOutOfMemory, "requested %d bytes, %d remaining of %d", n, len(a.buf)-a.next, len(a.buf))
	}
	a.gen++
	tok := Token{offset: a.next, size: n, gen: a.gen}
	region := a.buf[a.next : a.next+n]
	for i := range region {
		region[i] = 0
	}
	a.next += n
	a.live = append(a.live, tok)
	return tok, region, nil
}

// Free releases tok. tok must be the most recently allocated live token;
// releasing anything else returns ErrNotLIFO and leaves the arena
// unchanged.
func (a *Arena) Free(tok Token) error {
	if len(a.live) == 0 {
		return errors.Wrap(ErrNotLIFO, "arena is empty")
	}
	top := a.live[len(a.live)-1]
	if top.gen != tok.gen {
		return errors.Wrapf(ErrNotLIFO, "freed token gen %d, expected top-of-stack gen %d", tok.gen, top.gen)
	}
	a.live = a.live[:len(a.live)-1]
	a.next -= top.size
	return nil
}
