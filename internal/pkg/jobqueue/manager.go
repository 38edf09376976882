package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// Manager runs the queue workers and the periodic refresh schedule
type Manager struct {
	queue           *Queue
	trigger         *Trigger
	refreshInterval time.Duration
	refreshTicker   *time.Ticker
	stopCh          chan struct{}
	wg              sync.WaitGroup
	mu              sync.Mutex
	running         bool
}

// NewManager creates a manager that enqueues refresh_all every refreshInterval
func NewManager(queue *Queue, refreshInterval time.Duration) *Manager {
	if refreshInterval <= 0 {
		refreshInterval = time.Minute
	}
	return &Manager{
		queue:           queue,
		trigger:         NewTrigger(queue),
		refreshInterval: refreshInterval,
		stopCh:          make(chan struct{}),
	}
}

// Trigger returns the enqueue surface used by HTTP handlers
func (m *Manager) Trigger() *Trigger {
	return m.trigger
}

// Start starts the job queue and the refresh schedule
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	m.refreshTicker = time.NewTicker(m.refreshInterval)
	m.wg.Add(1)
	go m.refreshWorker()

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the refresh schedule and then the job queue
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.refreshTicker != nil {
		m.refreshTicker.Stop()
	}

	close(m.stopCh)
	m.running = false
	m.wg.Wait()

	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// refreshWorker enqueues a refresh of all accounts on every tick
func (m *Manager) refreshWorker() {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started refresh worker (interval: %s)", m.refreshInterval)

	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Refresh worker stopping")
			return
		case <-m.refreshTicker.C:
			if err := m.RunRefreshOnce(); err != nil {
				log.Errorf("[JobQueue Manager] Error scheduling refresh: %v", err)
			}
		}
	}
}

// RunRefreshOnce enqueues a single refresh_all job
func (m *Manager) RunRefreshOnce() error {
	_, err := m.trigger.RunRecentRefresh(context.Background())
	return err
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
