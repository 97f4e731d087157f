package audio

// PreRoll keeps the most recent frames seen outside of a recording so the
// onset of a word is not clipped when a trigger arrives one frame late.
// It is owned by a single capture loop and is not safe for concurrent use.
type PreRoll struct {
	frames   []Frame
	capacity int
}

// NewPreRoll returns an empty ring. A capacity below one is raised to one.
func NewPreRoll(capacity int) *PreRoll {
	if capacity < 1 {
		capacity = 1
	}
	return &PreRoll{frames: make([]Frame, 0, capacity), capacity: capacity}
}

// Push appends f, evicting the oldest frame beyond capacity.
func (p *PreRoll) Push(f Frame) {
	if len(p.frames) >= p.capacity {
		copy(p.frames, p.frames[1:])
		p.frames = p.frames[:len(p.frames)-1]
	}
	p.frames = append(p.frames, f)
}

// Last returns the most recently pushed frame.
func (p *PreRoll) Last() (Frame, bool) {
	if len(p.frames) == 0 {
		return Frame{}, false
	}
	return p.frames[len(p.frames)-1], true
}
