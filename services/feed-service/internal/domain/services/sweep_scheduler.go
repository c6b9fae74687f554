package services

import (
	"context"
	"sync"
	"time"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/jobs"
)

// SweepConfig настройки периодического обхода устаревших фидов
type SweepConfig struct {
	// Interval период обхода, по умолчанию 10 минут
	Interval time.Duration
	// InitialDelay задержка первого обхода после старта
	InitialDelay time.Duration
	// Timeout ограничение одного обхода
	Timeout time.Duration
}

// SweepScheduler периодически ставит в очередь сборки помеченных арендаторов
type SweepScheduler struct {
	sweeper Sweeper
	config  SweepConfig
	logger  interfaces.LoggerPort

	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
	wg        sync.WaitGroup
}

// NewSweepScheduler создает планировщик
func NewSweepScheduler(sweeper Sweeper, config SweepConfig, logger interfaces.LoggerPort) *SweepScheduler {
	if config.Interval <= 0 {
		config.Interval = 10 * time.Minute
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Minute
	}
	return &SweepScheduler{
		sweeper: sweeper,
		config:  config,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Start запускает планировщик; повторный вызов ничего не делает
func (s *SweepScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	s.logger.Info("Планировщик обхода фидов запущен",
		interfaces.Field("interval", s.config.Interval.String()),
	)

	s.wg.Add(1)
	go s.run()
}

func (s *SweepScheduler) run() {
	defer s.wg.Done()

	if s.config.InitialDelay > 0 {
		select {
		case <-time.After(s.config.InitialDelay):
			s.sweep()
		case <-s.stopCh:
			return
		}
	}

	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.stopCh:
			s.logger.Info("Планировщик обхода фидов остановлен")
			return
		}
	}
}

func (s *SweepScheduler) sweep() {
	scheduled, err := s.RunNow()
	if err != nil {
		s.logger.Error("Ошибка обхода устаревших фидов", interfaces.ErrField(err))
	}
	if len(scheduled) > 0 {
		s.logger.Debug("Сборки поставлены планировщиком", interfaces.Field("jobs", len(scheduled)))
	}
}

// Stop останавливает планировщик и ждет завершения текущего обхода
func (s *SweepScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
		s.mu.Unlock()
	})
	s.wg.Wait()
}

// RunNow выполняет обход немедленно
func (s *SweepScheduler) RunNow() ([]*jobs.Job, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()

	return s.sweeper.SweepDirtyTenants(ctx)
}
