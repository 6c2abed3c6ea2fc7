package playback

import "testing"

func TestNewState(t *testing.T) {
	s := NewState()
	if s.Index != 0 || s.Playing || s.Reverse || s.Loop {
		t.Fatalf("NewState() = %+v; want zero state", s)
	}
}

func TestToggles(t *testing.T) {
	s := State{Index: 3}

	if got := s.TogglePlay(); !got.Playing || got.Index != 3 {
		t.Errorf("TogglePlay() = %+v", got)
	}
	if got := s.ToggleLoop(); !got.Loop || got.Index != 3 {
		t.Errorf("ToggleLoop() = %+v", got)
	}
	if got := s.ToggleReverse(); !got.Reverse || got.Index != 3 {
		t.Errorf("ToggleReverse() = %+v", got)
	}
	if got := s.TogglePlay().TogglePlay(); got != s {
		t.Errorf("double toggle changed state: %+v", got)
	}
}

func TestTick(t *testing.T) {
	tests := []struct {
		name   string
		in     State
		length int
		want   int
	}{
		{name: "forward step", in: State{Index: 2}, length: 5, want: 3},
		{name: "forward pinned at end", in: State{Index: 4}, length: 5, want: 4},
		{name: "forward wraps when looping", in: State{Index: 4, Loop: true}, length: 5, want: 0},
		{name: "reverse step", in: State{Index: 2, Reverse: true}, length: 5, want: 1},
		{name: "reverse pinned at start", in: State{Index: 0, Reverse: true}, length: 5, want: 0},
		{name: "reverse wraps when looping", in: State{Index: 0, Reverse: true, Loop: true}, length: 5, want: 4},
		{name: "out of range index is clamped first", in: State{Index: 9}, length: 5, want: 4},
		{name: "negative index is clamped first", in: State{Index: -3, Reverse: true}, length: 5, want: 0},
		{name: "single point never moves", in: State{Index: 0, Loop: true}, length: 1, want: 0},
		{name: "empty route never moves", in: State{Index: 0, Loop: true}, length: 0, want: 0},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := Tick(tc.in, tc.length)
			if got.Index != tc.want {
				t.Fatalf("Tick(%+v, %d).Index = %d; want %d", tc.in, tc.length, got.Index, tc.want)
			}
			if got.Playing != tc.in.Playing || got.Loop != tc.in.Loop || got.Reverse != tc.in.Reverse {
				t.Fatalf("Tick changed flags: %+v -> %+v", tc.in, got)
			}
		})
	}
}

func TestTickInvariant(t *testing.T) {
	for length := 2; length <= 7; length++ {
		for _, flags := range []State{{}, {Reverse: true}, {Loop: true}, {Reverse: true, Loop: true}} {
			s := flags
			s.Playing = true
			for i := 0; i < 3*length; i++ {
				s = Tick(s, length)
				if s.Index < 0 || s.Index >= length {
					t.Fatalf("index %d escaped [0,%d) with flags %+v", s.Index, length, flags)
				}
			}
		}
	}
}

func TestTickConverges(t *testing.T) {
	const length = 6

	s := State{Playing: true}
	for i := 0; i < 20; i++ {
		s = Tick(s, length)
	}
	if s.Index != length-1 || !s.Playing {
		t.Errorf("forward non-looping settled at %+v; want index %d still playing", s, length-1)
	}

	s = State{Index: length - 1, Reverse: true, Playing: true}
	for i := 0; i < 20; i++ {
		s = Tick(s, length)
	}
	if s.Index != 0 {
		t.Errorf("reverse non-looping settled at %d; want 0", s.Index)
	}
}

func TestTickLoopRevisitsBothEnds(t *testing.T) {
	const length = 4
	for _, reverse := range []bool{false, true} {
		s := State{Loop: true, Reverse: reverse, Playing: true}
		seenFirst, seenLast := 0, 0
		for i := 0; i < 5*length; i++ {
			s = Tick(s, length)
			switch s.Index {
			case 0:
				seenFirst++
			case length - 1:
				seenLast++
			}
		}
		if seenFirst < 4 || seenLast < 4 {
			t.Errorf("reverse=%v: visited start %d times and end %d times", reverse, seenFirst, seenLast)
		}
	}
}

func TestToggleLoopWhilePinned(t *testing.T) {
	const length = 5
	s := State{Index: length - 1, Playing: true}
	s = Tick(s, length)
	if s.Index != length-1 {
		t.Fatalf("expected to stay pinned, got %d", s.Index)
	}
	s = Tick(s.ToggleLoop(), length)
	if s.Index != 0 {
		t.Fatalf("tick after enabling loop at the end = %d; want 0", s.Index)
	}
}

func TestNextIndex(t *testing.T) {
	tests := []struct {
		name   string
		in     State
		length int
		want   int
	}{
		{name: "forward", in: State{Index: 3}, length: 10, want: 4},
		{name: "reverse", in: State{Index: 3, Reverse: true}, length: 10, want: 2},
		{name: "forward at end", in: State{Index: 9}, length: 10, want: 9},
		{name: "reverse at start", in: State{Index: 0, Reverse: true}, length: 10, want: 0},
		{name: "looping does not wrap next", in: State{Index: 9, Loop: true}, length: 10, want: 9},
		{name: "single point", in: State{}, length: 1, want: 0},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := NextIndex(tc.in, tc.length); got != tc.want {
				t.Fatalf("NextIndex(%+v, %d) = %d; want %d", tc.in, tc.length, got, tc.want)
			}
		})
	}
}

func TestAtBoundary(t *testing.T) {
	if !AtBoundary(State{Index: 4}, 5) {
		t.Error("forward at last index should be a boundary")
	}
	if AtBoundary(State{Index: 4, Loop: true}, 5) {
		t.Error("looping is never at a boundary")
	}
	if !AtBoundary(State{Reverse: true}, 5) {
		t.Error("reverse at index 0 should be a boundary")
	}
	if AtBoundary(State{Index: 2}, 5) {
		t.Error("middle of the route is not a boundary")
	}
	if !AtBoundary(State{}, 1) {
		t.Error("a single point route is always at a boundary")
	}
}
