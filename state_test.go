package html2preview

import "testing"

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		s    State
		want string
	}{
		{StateIdle, "idle"},
		{StateBrowserStarting, "browser starting"},
		{StateDone, "done"},
		{State(99), "unknown"},
		{State(-1), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.s), got, tt.want)
		}
	}
}

func TestJobPhase(t *testing.T) {
	t.Parallel()

	for p := PhaseQueued; p <= PhaseFailed; p++ {
		if p.String() == "unknown" {
			t.Errorf("phase %d has no name", int(p))
		}
		want := p == PhaseSucceeded || p == PhaseFailed
		if p.Terminal() != want {
			t.Errorf("%s.Terminal() = %v, want %v", p, p.Terminal(), want)
		}
	}
	if JobPhase(42).String() != "unknown" {
		t.Error("out of range phase should be unknown")
	}
}
