package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/mybizz/mybizz/internal/pkg/env"
)

const DefaultSweepInterval = 15 * time.Minute

// RetrySweeper is the periodic retry work driven by the manager.
type RetrySweeper interface {
	ScheduledSweep(ctx context.Context) (int, error)
	Reseed(ctx context.Context) (int, error)
}

// Manager owns the job queue workers and the retry sweep ticker
type Manager struct {
	queue         *Queue
	sweeper       RetrySweeper
	sweepInterval time.Duration
	sweepTicker   *time.Ticker
	stopCh        chan struct{}
	wg            sync.WaitGroup
	mu            sync.Mutex
	running       bool
}

var (
	globalManager *Manager
	managerMu     sync.RWMutex
)

// NewManager creates a manager. A nil sweeper runs the queue only.
func NewManager(queue *Queue, sweeper RetrySweeper, sweepInterval time.Duration) *Manager {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &Manager{
		queue:         queue,
		sweeper:       sweeper,
		sweepInterval: sweepInterval,
		stopCh:        make(chan struct{}),
	}
}

// InitManager installs the process-wide manager.
func InitManager(m *Manager) {
	managerMu.Lock()
	defer managerMu.Unlock()
	globalManager = m
}

// GetManager returns the process-wide manager, or nil before InitManager.
func GetManager() *Manager {
	managerMu.RLock()
	defer managerMu.RUnlock()
	return globalManager
}

// SweepIntervalFromEnv reads RETRY_SWEEP_INTERVAL_MINUTES.
func SweepIntervalFromEnv() time.Duration {
	minutes := env.GetEnvInt("RETRY_SWEEP_INTERVAL_MINUTES", int(DefaultSweepInterval/time.Minute))
	if minutes <= 0 {
		return DefaultSweepInterval
	}
	return time.Duration(minutes) * time.Minute
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// IsRunning reports whether Start has been called without a matching Stop
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Start starts the job queue and the retry sweep
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and retry sweep")

	m.queue.Start()

	if m.sweeper != nil {
		m.sweepTicker = time.NewTicker(m.sweepInterval)
		m.wg.Add(1)
		go m.sweepWorker(m.stopCh, m.sweepTicker.C)
	}

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the retry sweep and the job queue
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and retry sweep...")

	if m.sweepTicker != nil {
		m.sweepTicker.Stop()
	}

	close(m.stopCh)
	m.running = false

	m.wg.Wait()

	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// sweepWorker reseeds once at startup, then reseeds and sweeps on every tick
func (m *Manager) sweepWorker(stopCh <-chan struct{}, tick <-chan time.Time) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started retry sweep worker (interval: %s)", m.sweepInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stopCh
		cancel()
	}()

	m.reseed(ctx)

	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Retry sweep worker stopping")
			return
		case <-tick:
			m.reseed(ctx)
			m.sweep(ctx)
		}
	}
}

func (m *Manager) reseed(ctx context.Context) {
	n, err := m.sweeper.Reseed(ctx)
	if err != nil {
		log.Errorf("[JobQueue Manager] Retry schedule reseed failed: %v", err)
		return
	}
	log.Debugf("[JobQueue Manager] Retry schedule reseeded with %d rows", n)
}

func (m *Manager) sweep(ctx context.Context) {
	n, err := m.sweeper.ScheduledSweep(ctx)
	if err != nil {
		log.Errorf("[JobQueue Manager] Scheduled retry sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Infof("[JobQueue Manager] Scheduled retry sweep processed %d rows", n)
	}
}
