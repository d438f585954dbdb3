package service

import (
	"time"

	"github.com/okian/trendcast/internal/domain/forecaster"
	"github.com/okian/trendcast/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of concurrent fits.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued fits.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many request ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithModelCacheSize sets how many models are kept.
func WithModelCacheSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.modelCacheSize = size
		}
	}
}

// WithFitTimeout bounds a single fit. Zero means no limit.
func WithFitTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.fitTimeout = d
		}
	}
}

// WithShutdownTimeout bounds how long Stop waits for queued fits.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithModelDefaults sets the settings new definitions start from.
func WithModelDefaults(settings forecaster.Settings) Option {
	return func(s *Service) {
		s.modelDefaults = settings
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
