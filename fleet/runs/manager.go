package runs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrInvalidRunID = errors.New("invalid run ID")
	ErrRunFinished  = errors.New("run already finished")
	ErrRunActive    = errors.New("run is still active")
)

const interruptedMessage = "interrupted by shutdown"

// ValidateID checks that id is a run identifier
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, id)
	}
	return nil
}

// Manager handles run lifecycle. All returned runs are snapshots.
type Manager struct {
	root        string
	runs        map[string]*Run
	cancels     map[string]context.CancelFunc
	persistence Persistence
	log         *zap.Logger
	mu          sync.RWMutex
}

// NewManager creates an in-memory manager placing run output under root
func NewManager(root string, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		root:    root,
		runs:    make(map[string]*Run),
		cancels: make(map[string]context.CancelFunc),
		log:     log,
	}
}

// NewManagerWithPersistence creates a manager that saves every change
func NewManagerWithPersistence(persistence Persistence, log *zap.Logger) *Manager {
	m := NewManager("", log)
	m.persistence = persistence
	return m
}

// Create registers a pending run for the named profile
func (m *Manager) Create(configName string) (*Run, error) {
	id := uuid.NewString()
	dir := m.runDir(id)
	run := &Run{
		ID:          id,
		ConfigName:  configName,
		Status:      StatusPending,
		CreatedAt:   time.Now(),
		Dir:         dir,
		InvoicesDir: filepath.Join(dir, "invoices"),
		ReportsDir:  filepath.Join(dir, "reports"),
	}

	m.mu.Lock()
	m.runs[id] = run
	m.mu.Unlock()

	if err := m.save(run); err != nil {
		m.mu.Lock()
		delete(m.runs, id)
		m.mu.Unlock()
		return nil, err
	}
	return run.Copy(), nil
}

// Get retrieves a run, falling back to persistence
func (m *Manager) Get(id string) (*Run, error) {
	m.mu.RLock()
	run, exists := m.runs[id]
	if exists {
		defer m.mu.RUnlock()
		return run.Copy(), nil
	}
	m.mu.RUnlock()

	if m.persistence != nil && m.persistence.Exists(id) {
		loaded, err := m.persistence.Load(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load persisted run: %w", err)
		}
		m.mu.Lock()
		m.runs[id] = loaded
		m.mu.Unlock()
		return loaded.Copy(), nil
	}
	return nil, ErrRunNotFound
}

// List returns all known runs, newest first
func (m *Manager) List() []*Run {
	m.mu.RLock()
	result := make([]*Run, 0, len(m.runs))
	for _, run := range m.runs {
		result = append(result, run.Copy())
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// Update applies fn to the stored run and persists the result
func (m *Manager) Update(id string, fn func(run *Run)) (*Run, error) {
	m.mu.Lock()
	run, exists := m.runs[id]
	if !exists {
		m.mu.Unlock()
		return nil, ErrRunNotFound
	}
	fn(run)
	snapshot := run.Copy()
	if run.Status.Terminal() {
		delete(m.cancels, id)
	}
	m.mu.Unlock()

	if err := m.save(snapshot); err != nil {
		m.log.Warn("failed to persist run", zap.String("run_id", id), zap.Error(err))
	}
	return snapshot, nil
}

// SetCancel registers the function stopping an active run
func (m *Manager) SetCancel(id string, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancels[id] = cancel
}

// Cancel stops an active run. The run's status changes once its goroutine
// has wound down.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, exists := m.runs[id]
	if !exists {
		return ErrRunNotFound
	}
	if run.Status.Terminal() {
		return ErrRunFinished
	}
	if cancel, ok := m.cancels[id]; ok {
		cancel()
	}
	return nil
}

// Delete removes a finished run and its output
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, inMemory := m.runs[id]
	if inMemory && !run.Status.Terminal() {
		return ErrRunActive
	}
	delete(m.runs, id)

	if m.persistence != nil && m.persistence.Exists(id) {
		if err := m.persistence.Delete(id); err != nil {
			return fmt.Errorf("failed to delete persisted run: %w", err)
		}
		return nil
	}
	if !inMemory {
		return ErrRunNotFound
	}
	return nil
}

// Active returns the number of runs that have not stopped
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, run := range m.runs {
		if !run.Status.Terminal() {
			n++
		}
	}
	return n
}

// CancelAll stops every active run
func (m *Manager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cancel := range m.cancels {
		cancel()
	}
}

// Count returns the number of known runs
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}

// LoadPersisted loads all stored runs into memory. Runs that never reached
// a terminal status are marked failed.
func (m *Manager) LoadPersisted() error {
	if m.persistence == nil {
		return nil
	}

	ids, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted runs: %w", err)
	}

	var interrupted []*Run
	m.mu.Lock()
	loaded := 0
	for _, id := range ids {
		if _, exists := m.runs[id]; exists {
			continue
		}
		run, err := m.persistence.Load(id)
		if err != nil {
			m.log.Warn("failed to load persisted run", zap.String("run_id", id), zap.Error(err))
			continue
		}
		if !run.Status.Terminal() {
			run.Status = StatusFailed
			run.Error = interruptedMessage
			if run.FinishedAt.IsZero() {
				run.FinishedAt = time.Now()
			}
			interrupted = append(interrupted, run.Copy())
		}
		m.runs[id] = run
		loaded++
	}
	m.mu.Unlock()

	for _, run := range interrupted {
		if err := m.save(run); err != nil {
			m.log.Warn("failed to persist interrupted run", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
	if loaded > 0 {
		m.log.Info("loaded persisted runs", zap.Int("count", loaded))
	}
	return nil
}

func (m *Manager) save(run *Run) error {
	if m.persistence == nil {
		return nil
	}
	return m.persistence.Save(run)
}

func (m *Manager) runDir(id string) string {
	if m.persistence != nil {
		return m.persistence.RunDir(id)
	}
	return filepath.Join(m.root, id)
}
