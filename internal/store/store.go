// Package store holds the process-lifetime audit state: the current upload
// slot per source side and completed audit runs. Nothing is persisted; a
// restart starts empty.
package store

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"parcel-audit/internal/domain"
	"parcel-audit/pkg/logger"
)

// ErrStaleUpload is returned when an upload finishes after a newer upload
// for the same slot was started; its results are discarded.
var ErrStaleUpload = errors.New("upload superseded by a newer upload for this slot")

// State is an atomic snapshot of both slots. Audit runs are computed as a
// pure function of one State, never from live slot reads.
type State struct {
	Carrier    domain.SourceSlot
	POS        domain.SourceSlot
	HasCarrier bool
	HasPOS     bool
}

// SlotStore tracks the current upload per source side. Slots are replaced
// wholesale; Seq numbers issued by NextSeq are monotonic per slot so a
// slow concurrent upload can never overwrite a newer one.
type SlotStore interface {
	NextSeq(kind domain.SourceKind) uint64
	Put(slot domain.SourceSlot) error
	Get(kind domain.SourceKind) (domain.SourceSlot, bool)
	Clear(kind domain.SourceKind) bool
	Snapshot() State
}

type slotStore struct {
	mu    sync.Mutex
	seq   map[domain.SourceKind]uint64
	slots map[domain.SourceKind]domain.SourceSlot
}

func NewSlotStore() SlotStore {
	return &slotStore{
		seq:   make(map[domain.SourceKind]uint64),
		slots: make(map[domain.SourceKind]domain.SourceSlot),
	}
}

func (s *slotStore) NextSeq(kind domain.SourceKind) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[kind]++
	return s.seq[kind]
}

func (s *slotStore) Put(slot domain.SourceSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slot.Seq != s.seq[slot.Kind] {
		logger.GetLogger().WithFields(logrus.Fields{
			"slot":       slot.Kind,
			"seq":        slot.Seq,
			"latest_seq": s.seq[slot.Kind],
		}).Warn("Discarding stale upload")
		return ErrStaleUpload
	}

	s.slots[slot.Kind] = slot
	return nil
}

func (s *slotStore) Get(kind domain.SourceKind) (domain.SourceSlot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[kind]
	return slot, ok
}

// Clear drops a slot and advances its sequence, so uploads still in flight
// for the old state land as stale.
func (s *slotStore) Clear(kind domain.SourceKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.slots[kind]
	if ok {
		delete(s.slots, kind)
		s.seq[kind]++
	}
	return ok
}

func (s *slotStore) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st State
	st.Carrier, st.HasCarrier = s.slots[domain.SourceCarrier]
	st.POS, st.HasPOS = s.slots[domain.SourcePOS]
	return st
}

// RunStore keeps completed audit runs for the life of the process.
type RunStore interface {
	Put(run *domain.AuditRun)
	Get(runID string) (*domain.AuditRun, bool)
}

type runStore struct {
	mu   sync.RWMutex
	runs map[string]*domain.AuditRun
}

func NewRunStore() RunStore {
	return &runStore{runs: make(map[string]*domain.AuditRun)}
}

func (s *runStore) Put(run *domain.AuditRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.RunID] = run
}

func (s *runStore) Get(runID string) (*domain.AuditRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	return run, ok
}
