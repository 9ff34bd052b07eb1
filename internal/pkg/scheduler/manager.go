package scheduler

import (
	"strconv"
	"sync"
	"time"

	"github.com/CrewBill/CrewBill/internal/pkg/env"
	"github.com/gofiber/fiber/v2/log"
)

// Manager drives the periodic sweeps. One instance runs per process; the
// sweeps themselves tolerate overlapping instances across processes.
type Manager struct {
	sweeper          *Sweeper
	expiryTicker     *time.Ticker
	reminderTicker   *time.Ticker
	staleDraftTicker *time.Ticker
	stopCh           chan struct{}
	wg               sync.WaitGroup
	mu               sync.Mutex
	running          bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// InitializeManager sets up the global scheduler manager (singleton).
func InitializeManager(sweeper *Sweeper) *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{
			sweeper: sweeper,
			stopCh:  make(chan struct{}),
		}
	})
	return globalManager
}

// GetManager returns the global scheduler manager. InitializeManager must
// have been called first.
func GetManager() *Manager {
	if globalManager == nil {
		panic("scheduler manager used before InitializeManager")
	}
	return globalManager
}

// Start launches the sweep workers.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so the manager can be
	// restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[Scheduler] Starting reconciliation sweeps")

	m.expiryTicker = time.NewTicker(intervalFromEnv("SCHEDULER_EXPIRY_INTERVAL_MIN", 10))
	m.wg.Add(1)
	go m.expiryWorker()

	m.reminderTicker = time.NewTicker(intervalFromEnv("SCHEDULER_REMINDER_INTERVAL_MIN", 60))
	m.wg.Add(1)
	go m.reminderWorker()

	m.staleDraftTicker = time.NewTicker(intervalFromEnv("SCHEDULER_STALE_DRAFT_INTERVAL_MIN", 60))
	m.wg.Add(1)
	go m.staleDraftWorker()

	log.Info("[Scheduler] Started successfully")
}

// Stop stops the sweep workers and waits for in-flight sweeps to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Scheduler] Stopping reconciliation sweeps...")

	if m.expiryTicker != nil {
		m.expiryTicker.Stop()
	}
	if m.reminderTicker != nil {
		m.reminderTicker.Stop()
	}
	if m.staleDraftTicker != nil {
		m.staleDraftTicker.Stop()
	}

	// The channel stays closed (never nil) until Start replaces it, so a
	// worker that loops once more after the close still selects and exits.
	close(m.stopCh)
	m.running = false

	m.wg.Wait()

	log.Info("[Scheduler] Stopped successfully")
}

func (m *Manager) expiryWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Scheduler] Expiry worker stopping")
			return
		case <-m.expiryTicker.C:
			if err := m.sweeper.RunExpirySweep(time.Now()); err != nil {
				log.Errorf("[Scheduler] Expiry sweep error: %v", err)
			}
		}
	}
}

func (m *Manager) reminderWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Scheduler] Reminder worker stopping")
			return
		case <-m.reminderTicker.C:
			if err := m.sweeper.RunReminderSweep(time.Now()); err != nil {
				log.Errorf("[Scheduler] Reminder sweep error: %v", err)
			}
		}
	}
}

func (m *Manager) staleDraftWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Scheduler] Stale draft worker stopping")
			return
		case <-m.staleDraftTicker.C:
			if err := m.sweeper.RunStaleDraftSweep(time.Now()); err != nil {
				log.Errorf("[Scheduler] Stale draft sweep error: %v", err)
			}
		}
	}
}

func intervalFromEnv(key string, defMinutes int) time.Duration {
	if v := env.GetEnv(key, ""); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil && minutes > 0 {
			return time.Duration(minutes) * time.Minute
		}
	}
	return time.Duration(defMinutes) * time.Minute
}
