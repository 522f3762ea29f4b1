package match

import (
	"sync"
	"time"
)

// SourceState is the latest search outcome for one frame source.
type SourceState struct {
	SourceID  string          `json:"sourceId"`
	Frame     *PixelGrid      `json:"-"`
	Report    Report          `json:"report"`
	Results   []OverlayResult `json:"-"`
	Timestamp time.Time       `json:"timestamp"`
}

// StateTracker tracks the latest frame and search results per source for
// HTTP endpoints.
type StateTracker struct {
	mu     sync.RWMutex
	states map[string]*SourceState
}

// NewStateTracker creates a new state tracker
func NewStateTracker() *StateTracker {
	return &StateTracker{
		states: make(map[string]*SourceState),
	}
}

// Update stores the latest frame and results for a source.
func (st *StateTracker) Update(sourceID string, frame *PixelGrid, results []OverlayResult, report Report) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.states[sourceID] = &SourceState{
		SourceID:  sourceID,
		Frame:     frame,
		Report:    report,
		Results:   results,
		Timestamp: time.Now(),
	}
}

// Get returns the latest state for a source, or nil if none has arrived.
func (st *StateTracker) Get(sourceID string) *SourceState {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if s, ok := st.states[sourceID]; ok {
		copy := *s
		return &copy
	}
	return nil
}

// GetAll returns the latest state for every source that has reported.
func (st *StateTracker) GetAll() map[string]*SourceState {
	st.mu.RLock()
	defer st.mu.RUnlock()

	result := make(map[string]*SourceState)
	for k, v := range st.states {
		copy := *v
		result[k] = &copy
	}
	return result
}

// HasResults returns true if at least one source has been processed.
func (st *StateTracker) HasResults() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.states) > 0
}
