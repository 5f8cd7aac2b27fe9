package xpath

// Frame describes an open element on the match stack.
// Position counts preceding siblings with the same expanded name, Index counts
// all preceding element siblings; both are 1-based.
type Frame struct {
	Space    string
	Local    string
	Position int
	Index    int
}

// MatchElement reports whether the innermost frame is selected by an element branch.
func (e Expression) MatchElement(frames []Frame) bool {
	for i := range e.Paths {
		path := &e.Paths[i]
		if path.Attribute == nil && path.matchSteps(frames) {
			return true
		}
	}
	return false
}

// MatchAttribute reports whether attribute {space}local of the innermost frame
// is selected by an attribute branch.
func (e Expression) MatchAttribute(frames []Frame, space, local string) bool {
	for i := range e.Paths {
		path := &e.Paths[i]
		if path.Attribute == nil || !path.Attribute.Matches(space, local) {
			continue
		}
		if len(path.Steps) == 0 {
			if len(frames) > 0 {
				return true
			}
			continue
		}
		if path.matchSteps(frames) {
			return true
		}
	}
	return false
}

// Matches reports whether the test accepts the expanded name {space}local.
func (t NodeTest) Matches(space, local string) bool {
	if t.LocalSet && t.Local != local {
		return false
	}
	if t.NamespaceSet && t.Namespace != space {
		return false
	}
	return true
}

func (s *Step) matches(frame *Frame) bool {
	if s.Unmatchable || !s.Test.Matches(frame.Space, frame.Local) {
		return false
	}
	if s.Position == 0 {
		return true
	}
	if s.byName {
		return frame.Position == s.Position
	}
	return frame.Index == s.Position
}

func (p *Path) matchSteps(frames []Frame) bool {
	if len(p.Steps) == 0 || len(frames) == 0 {
		return false
	}
	var match func(stepIndex, depth int) bool
	match = func(stepIndex, depth int) bool {
		if depth < 0 || stepIndex < 0 {
			return false
		}
		step := &p.Steps[stepIndex]
		if !step.matches(&frames[depth]) {
			return false
		}
		if stepIndex == 0 {
			return step.Axis == AxisDescendant || depth == 0
		}
		switch step.Axis {
		case AxisChild:
			return match(stepIndex-1, depth-1)
		case AxisDescendant:
			for prev := depth - 1; prev >= 0; prev-- {
				if match(stepIndex-1, prev) {
					return true
				}
			}
			return false
		default:
			return false
		}
	}
	return match(len(p.Steps)-1, len(frames)-1)
}

type nameKey struct {
	space string
	local string
}

type siblings struct {
	total  int
	byName map[nameKey]int
}

// Tracker maintains the frame stack of a streamed document.
type Tracker struct {
	frames []Frame
	levels []siblings
}

// Push opens an element and returns the current frames. The returned slice is
// only valid until the next call.
func (t *Tracker) Push(space, local string) []Frame {
	if len(t.levels) == 0 {
		t.levels = append(t.levels, siblings{})
	}
	level := &t.levels[len(t.frames)]
	if level.byName == nil {
		level.byName = make(map[nameKey]int)
	}
	key := nameKey{space: space, local: local}
	level.total++
	level.byName[key]++
	t.frames = append(t.frames, Frame{
		Space:    space,
		Local:    local,
		Position: level.byName[key],
		Index:    level.total,
	})

	depth := len(t.frames)
	if depth < len(t.levels) {
		t.levels[depth].total = 0
		clear(t.levels[depth].byName)
	} else {
		t.levels = append(t.levels, siblings{})
	}
	return t.frames
}

// Pop closes the innermost element.
func (t *Tracker) Pop() {
	if len(t.frames) == 0 {
		return
	}
	t.frames = t.frames[:len(t.frames)-1]
}

// Frames returns the open elements, outermost first.
func (t *Tracker) Frames() []Frame {
	return t.frames
}

// Depth returns the number of open elements.
func (t *Tracker) Depth() int {
	return len(t.frames)
}
