package hal

import (
	"strconv"
	"strings"
)

// DefaultNativeStackDepth is the number of frames kept by a native stack.
const DefaultNativeStackDepth = 10

// nativeStack records which exported functions are currently dispatching.
// Frames are pushed on entry and truncated on success; a failing call leaves its
// frame so the error raised for it can report the path that led there.
type nativeStack struct {
	depth  int
	frames []string
	// evicted counts frames dropped off the bottom, so marks stay valid
	// across evictions.
	evicted int
}

func newNativeStack(depth int) *nativeStack {
	if depth <= 0 {
		depth = DefaultNativeStackDepth
	}
	return &nativeStack{depth: depth, frames: make([]string, 0, depth)}
}

// Push adds a frame, evicting the oldest one when full. It returns a mark
// for Truncate.
func (s *nativeStack) Push(name string) int {
	if len(s.frames) == s.depth {
		copy(s.frames, s.frames[1:])
		s.frames = s.frames[:len(s.frames)-1]
		s.evicted++
	}
	mark := s.evicted + len(s.frames)
	s.frames = append(s.frames, name)
	return mark
}

// Truncate removes the frame pushed with mark and every frame above it.
func (s *nativeStack) Truncate(mark int) {
	n := mark - s.evicted
	if n < 0 {
		n = 0
	}
	if n < len(s.frames) {
		s.frames = s.frames[:n]
	}
}

func (s *nativeStack) Clear() {
	s.frames = s.frames[:0]
}

func (s *nativeStack) Len() int {
	return len(s.frames)
}

// Frames returns the frames, most recent first.
func (s *nativeStack) Frames() []string {
	frames := make([]string, len(s.frames))
	for i, f := range s.frames {
		frames[len(s.frames)-1-i] = f
	}
	return frames
}

// formatNativeStack renders frames (most recent first) as numbered lines.
func formatNativeStack(frames []string) string {
	var b strings.Builder
	for i, f := range frames {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString("  ")
		b.WriteString(f)
		b.WriteByte('\n')
	}
	return b.String()
}

// parseNativeStack is the inverse of formatNativeStack.
func parseNativeStack(s string) []string {
	var frames []string
	for _, line := range strings.Split(s, "\n") {
		if line == "" {
			continue
		}
		if _, frame, ok := strings.Cut(line, "  "); ok {
			frames = append(frames, frame)
		} else {
			frames = append(frames, line)
		}
	}
	return frames
}
