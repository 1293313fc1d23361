package pipeline

import (
	"sync"

	"github.com/kneurasense/kneuraflow/internal/domain"
)

// State is the dashboard projection: the latest sample, liveness and
// enrichment. Readers only ever receive copies.
type State struct {
	thresholds domain.Thresholds

	mu         sync.RWMutex
	sample     *domain.Sample
	liveness   domain.Liveness
	enrichment *domain.Enrichment
}

func NewState(th domain.Thresholds) *State {
	return &State{thresholds: th, liveness: domain.Offline}
}

// ApplySample replaces the held sample. A sample whose seq is not newer than
// the held one is ignored and false is returned.
func (s *State) ApplySample(sample *domain.Sample) bool {
	if sample == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sample != nil && sample.Seq <= s.sample.Seq {
		return false
	}
	s.sample = sample.Clone()
	return true
}

// SetLiveness reports whether the stored state changed.
func (s *State) SetLiveness(l domain.Liveness) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.liveness == l {
		return false
	}
	s.liveness = l
	return true
}

func (s *State) SetEnrichment(e *domain.Enrichment) {
	if e == nil {
		return
	}
	cp := *e
	s.mu.Lock()
	s.enrichment = &cp
	s.mu.Unlock()
}

// View returns a point-in-time copy including the risk tier of the held sample.
func (s *State) View() domain.DashboardView {
	s.mu.RLock()
	v := domain.DashboardView{
		Sample:   s.sample.Clone(),
		Liveness: s.liveness,
	}
	if s.enrichment != nil {
		e := *s.enrichment
		v.Enrichment = &e
	}
	s.mu.RUnlock()

	if v.Sample != nil {
		if tier, err := s.thresholds.Classify(v.Sample.RiskScore); err == nil {
			v.Risk = &tier
		}
	}
	return v
}

func (s *State) Thresholds() domain.Thresholds {
	return s.thresholds
}
