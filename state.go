package html2preview

// State is the run-level position of a Generator.
type State int

// Run states, in order. Stopping always runs on the way to Done.
const (
	StateIdle State = iota
	StateDiscovering
	StateServerStarting
	StateBrowserStarting
	StateCapturing
	StateStopping
	StateDone
)

var stateNames = [...]string{
	StateIdle:            "idle",
	StateDiscovering:     "discovering",
	StateServerStarting:  "server starting",
	StateBrowserStarting: "browser starting",
	StateCapturing:       "capturing",
	StateStopping:        "stopping",
	StateDone:            "done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// JobPhase is the position of a single page inside the Capturing state.
type JobPhase int

// Job phases. Every job ends in PhaseSucceeded or PhaseFailed.
const (
	PhaseQueued JobPhase = iota
	PhaseNavigating
	PhaseWaitingForTarget
	PhaseScreenshotting
	PhaseWriting
	PhaseDeletingOriginal
	PhaseSucceeded
	PhaseFailed
)

var phaseNames = [...]string{
	PhaseQueued:           "queued",
	PhaseNavigating:       "navigating",
	PhaseWaitingForTarget: "waiting for target",
	PhaseScreenshotting:   "screenshotting",
	PhaseWriting:          "writing",
	PhaseDeletingOriginal: "deleting original",
	PhaseSucceeded:        "succeeded",
	PhaseFailed:           "failed",
}

func (p JobPhase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Terminal reports whether the phase ends the job.
func (p JobPhase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// Progress is delivered to a ProgressFunc on every job phase change.
type Progress struct {
	RelativePath string
	Phase        JobPhase
	Err          error // set with PhaseFailed
}

// ProgressFunc observes job phases. It is called from worker goroutines
// and must be safe for concurrent use.
type ProgressFunc func(Progress)
