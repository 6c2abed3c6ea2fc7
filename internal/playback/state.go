package playback

// State is the mutable playback state of the view. The zero value is the
// initial state: index 0, paused, forward, not looping.
type State struct {
	Index   int  `json:"index"`
	Playing bool `json:"playing"`
	Reverse bool `json:"reverse"`
	Loop    bool `json:"loop"`
}

func NewState() State {
	return State{}
}

// TogglePlay flips playing. The index is untouched.
func (s State) TogglePlay() State {
	s.Playing = !s.Playing
	return s
}

// ToggleLoop flips the wrap-around policy used on the next tick.
func (s State) ToggleLoop() State {
	s.Loop = !s.Loop
	return s
}

// ToggleReverse flips the direction. The next tick already moves the other way.
func (s State) ToggleReverse() State {
	s.Reverse = !s.Reverse
	return s
}

func clampIndex(i, length int) int {
	if i >= length {
		i = length - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// Tick advances the index by one step in the current direction.
// At a boundary the index wraps when looping and stays pinned otherwise.
// Routes with fewer than two points never move.
func Tick(s State, length int) State {
	if length < 2 {
		s.Index = clampIndex(s.Index, length)
		return s
	}
	s.Index = clampIndex(s.Index, length)

	if s.Reverse {
		if s.Index > 0 {
			s.Index--
		} else if s.Loop {
			s.Index = length - 1
		}
	} else {
		if s.Index < length-1 {
			s.Index++
		} else if s.Loop {
			s.Index = 0
		}
	}
	return s
}

// AtBoundary reports whether a tick from s cannot move the index.
func AtBoundary(s State, length int) bool {
	if length < 2 {
		return true
	}
	if s.Loop {
		return false
	}
	i := clampIndex(s.Index, length)
	if s.Reverse {
		return i == 0
	}
	return i == length-1
}

// NextIndex is the index the heading and speed are measured towards.
// Out of range falls back to the current index.
func NextIndex(s State, length int) int {
	cur := clampIndex(s.Index, length)
	next := cur + 1
	if s.Reverse {
		next = cur - 1
	}
	if next < 0 || next >= length {
		return cur
	}
	return next
}
