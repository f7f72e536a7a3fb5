package gate

import "sync"

// State holds the process-wide violation counters and the in-memory freeze
// mirror. Every mutation goes through one method under one mutex, so
// concurrent intents cannot lose updates.
type State struct {
	mu                 sync.Mutex
	recentOSViolations int
	recentHighRiskTx   int
	globalFreeze       bool
	freezeReason       string
}

// Snapshot is a read-only copy of the counters.
type Snapshot struct {
	RecentOSViolations int    `json:"recent_os_violations"`
	RecentHighRiskTx   int    `json:"recent_high_risk_tx"`
	GlobalFreeze       bool   `json:"global_freeze"`
	FreezeReason       string `json:"freeze_reason,omitempty"`
}

// NewState starts with clean counters.
func NewState() *State {
	return &State{}
}

// RecordOSViolation bumps the OS violation counter.
func (s *State) RecordOSViolation() {
	s.mu.Lock()
	s.recentOSViolations++
	s.mu.Unlock()
}

// RecordHighRiskTx bumps the ledger high-risk counter.
func (s *State) RecordHighRiskTx() {
	s.mu.Lock()
	s.recentHighRiskTx++
	s.mu.Unlock()
}

// EngageFreeze sets the in-memory freeze mirror.
func (s *State) EngageFreeze(reason string) {
	s.mu.Lock()
	s.globalFreeze = true
	s.freezeReason = reason
	s.mu.Unlock()
}

// Frozen reports the mirror and its reason.
func (s *State) Frozen() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.globalFreeze, s.freezeReason
}

// OSViolations reports the OS violation count.
func (s *State) OSViolations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recentOSViolations
}

// Reset clears counters and the freeze mirror. Only an explicit
// administrative action calls this.
func (s *State) Reset() {
	s.mu.Lock()
	s.recentOSViolations = 0
	s.recentHighRiskTx = 0
	s.globalFreeze = false
	s.freezeReason = ""
	s.mu.Unlock()
}

// Snapshot copies the counters for status surfaces.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		RecentOSViolations: s.recentOSViolations,
		RecentHighRiskTx:   s.recentHighRiskTx,
		GlobalFreeze:       s.globalFreeze,
		FreezeReason:       s.freezeReason,
	}
}
