package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Abraxas-365/craftable/logx"
	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/pkg/metrics"
	"github.com/robfig/cron/v3"
)

// WaitingCounter cuenta sesiones suspendidas esperando input
type WaitingCounter interface {
	CountWaiting(ctx context.Context) (int, error)
}

var _ WaitingCounter = (engine.SessionRepository)(nil)

// MetricsScheduler refresca periódicamente los gauges que salen de la base
type MetricsScheduler struct {
	sessions WaitingCounter
	schedule string
	timeout  time.Duration
	cron     *cron.Cron

	mu      sync.Mutex
	running bool
}

func NewMetricsScheduler(sessions WaitingCounter, schedule string) *MetricsScheduler {
	if schedule == "" {
		schedule = "@every 1m"
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	return &MetricsScheduler{
		sessions: sessions,
		schedule: schedule,
		timeout:  10 * time.Second,
		cron:     cron.New(cron.WithParser(parser)),
	}
}

// Start registra el job y arranca el cron; corre un refresh inmediato
func (s *MetricsScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		log.Println("⚠️  Metrics scheduler already running")
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.refresh(ctx) }); err != nil {
		return fmt.Errorf("invalid metrics schedule %q: %w", s.schedule, err)
	}

	log.Printf("⏰ Starting metrics scheduler (%s)", s.schedule)
	go s.refresh(ctx)
	s.cron.Start()
	s.running = true
	return nil
}

// Stop detiene el cron y espera el job en curso
func (s *MetricsScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	log.Println("⏹️  Metrics scheduler stopped")
}

// Refresh actualiza el gauge de sesiones en espera
func (s *MetricsScheduler) Refresh(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, err := s.sessions.CountWaiting(ctx)
	if err != nil {
		return 0, err
	}
	metrics.SetWaitingSessions(count)
	return count, nil
}

func (s *MetricsScheduler) refresh(ctx context.Context) {
	if _, err := s.Refresh(ctx); err != nil {
		logx.Error("Failed to refresh waiting sessions gauge: %v", err)
	}
}
