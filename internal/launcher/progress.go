package launcher

import "sync"

// Snapshot is the progress document served over HTTP while a run is active.
type Snapshot struct {
	RunID  string `json:"run_id"`
	Mode   string `json:"mode"`
	Method string `json:"method"`
	Total  int    `json:"total"`
	Done   int    `json:"done"`
}

// Progress tracks how far a run has come. The launcher writes it from worker
// goroutines while the progress server reads it, so access is serialized.
type Progress struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewProgress returns an empty tracker, ready to be published before any run
// has started.
func NewProgress() *Progress {
	return &Progress{}
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

func (p *Progress) start(runID, mode, method string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap = Snapshot{RunID: runID, Mode: mode, Method: method, Total: total}
}

func (p *Progress) increment() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Done++
}
