package persistence

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RecorderConfig holds buffered recorder configuration
type RecorderConfig struct {
	BufferSize    int           `yaml:"buffer_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// Recorder is an asynchronous Store that buffers records and drains them to
// structured log output. A full buffer drops records with a warning; writes
// never block the caller.
type Recorder struct {
	config  *RecorderConfig
	logger  *logrus.Logger
	metrics chan MetricsRecord
	alerts  chan AlertRecord
	stop    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	stopped bool
	dropped int64
}

// NewRecorder creates and starts a buffered recorder
func NewRecorder(config *RecorderConfig, logger *logrus.Logger) *Recorder {
	if config == nil {
		config = &RecorderConfig{}
	}
	if config.BufferSize == 0 {
		config.BufferSize = 1000
	}
	if config.FlushInterval == 0 {
		config.FlushInterval = 10 * time.Second
	}

	r := &Recorder{
		config:  config,
		logger:  logger,
		metrics: make(chan MetricsRecord, config.BufferSize),
		alerts:  make(chan AlertRecord, config.BufferSize),
		stop:    make(chan struct{}),
	}

	r.wg.Add(1)
	go r.drainLoop()

	return r
}

// PersistMetrics enqueues a metrics record, dropping it if the buffer is full
func (r *Recorder) PersistMetrics(record MetricsRecord) {
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()
	if stopped {
		return
	}

	select {
	case r.metrics <- record:
	default:
		r.noteDrop("metrics")
	}
}

// PersistAlert enqueues an alert record, dropping it if the buffer is full
func (r *Recorder) PersistAlert(record AlertRecord) {
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()
	if stopped {
		return
	}

	select {
	case r.alerts <- record:
	default:
		r.noteDrop("alert")
	}
}

// Close stops the drain loop after flushing buffered records
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stop)
	r.wg.Wait()
}

func (r *Recorder) noteDrop(kind string) {
	r.mu.Lock()
	r.dropped++
	r.mu.Unlock()
	r.logger.WithField("kind", kind).Warn("Persistence buffer full, dropping record")
}

func (r *Recorder) drainLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case record := <-r.metrics:
			r.writeMetrics(record)
		case record := <-r.alerts:
			r.writeAlert(record)
		case <-ticker.C:
			r.flush()
		case <-r.stop:
			r.flush()
			return
		}
	}
}

// flush drains whatever is currently buffered without blocking
func (r *Recorder) flush() {
	for {
		select {
		case record := <-r.metrics:
			r.writeMetrics(record)
		case record := <-r.alerts:
			r.writeAlert(record)
		default:
			return
		}
	}
}

func (r *Recorder) writeMetrics(record MetricsRecord) {
	r.logger.WithFields(logrus.Fields{
		"record":           "provider_metrics",
		"provider":         record.ProviderID,
		"success":          record.Success,
		"response_time_ms": record.ResponseTime,
		"error_rate":       record.ErrorRate,
		"status":           record.Status,
	}).Info("Provider metrics")
}

func (r *Recorder) writeAlert(record AlertRecord) {
	r.logger.WithFields(logrus.Fields{
		"record":   "provider_alert",
		"provider": record.ProviderID,
		"severity": record.Severity,
		"status":   record.Status,
	}).Warn(record.Message)
}
