// Package chunk splits extracted text into overlapping fixed-size windows.
package chunk

import "iter"

// DefaultSize is the default number of characters per chunk.
const DefaultSize = 10000

// DefaultOverlap is the default number of characters shared by neighbouring chunks.
const DefaultOverlap = 1000

// Splitter slides a window of size characters over text, advancing by
// size-overlap each step. Characters are runes, not bytes.
type Splitter struct {
	size    int
	overlap int
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithSize sets the window size in characters.
func WithSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.size = size
		}
	}
}

// WithOverlap sets the overlap between neighbouring windows in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// New creates a Splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		size:    DefaultSize,
		overlap: DefaultOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}

	// The window must always advance.
	if s.overlap >= s.size {
		s.overlap = s.size / 4
	}
	return s
}

// Size returns the window size.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the overlap between windows.
func (s *Splitter) Overlap() int { return s.overlap }

// All yields (position, chunk) pairs in order. The sequence can be ranged
// over any number of times and yields the same chunks each time.
func (s *Splitter) All(text string) iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		runes := []rune(text)
		n := len(runes)
		step := s.size - s.overlap

		for pos, start := 0, 0; start < n; pos, start = pos+1, start+step {
			end := min(start+s.size, n)
			if !yield(pos, string(runes[start:end])) {
				return
			}
			if end == n {
				return
			}
		}
	}
}

// Split returns every chunk of text. Empty text yields no chunks.
func (s *Splitter) Split(text string) []string {
	var chunks []string
	for _, c := range s.All(text) {
		chunks = append(chunks, c)
	}
	return chunks
}

// Count returns the number of chunks Split would produce for a text of n characters.
func (s *Splitter) Count(n int) int {
	if n <= 0 {
		return 0
	}
	if n <= s.size {
		return 1
	}
	step := s.size - s.overlap
	return (n - s.overlap + step - 1) / step
}
