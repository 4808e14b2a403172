// Package dedup drops chunks whose content repeats one of the last few
// emitted chunks.
package dedup

// DefaultSize is the number of recent hashes remembered.
const DefaultSize = 5

// Window is a fixed-capacity ring of recently admitted content hashes.
// Only near-adjacent repeats are caught; memory and lookup cost are bounded
// by the window size.
type Window struct {
	hashes []string
	next   int // slot the next admitted hash is written to
	count  int
}

// NewWindow returns a window remembering the last size hashes. A
// non-positive size uses DefaultSize.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultSize
	}
	return &Window{hashes: make([]string, size)}
}

// Contains reports whether hash is currently in the window.
func (w *Window) Contains(hash string) bool {
	for i := 0; i < w.count; i++ {
		if w.hashes[i] == hash {
			return true
		}
	}
	return false
}

// Admit returns false if hash is in the window. Otherwise it records hash,
// evicting the oldest entry when full, and returns true.
func (w *Window) Admit(hash string) bool {
	if w.Contains(hash) {
		return false
	}
	w.hashes[w.next] = hash
	w.next = (w.next + 1) % len(w.hashes)
	if w.count < len(w.hashes) {
		w.count++
	}
	return true
}

// Len returns the number of hashes held.
func (w *Window) Len() int {
	return w.count
}
