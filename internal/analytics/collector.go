// Package analytics carries dashboard interaction events through Kafka. The
// Collector buffers events in the dashboard process and flushes them in
// batches, either when the batch fills or on a timer. Publishing is best
// effort: a failed batch is logged and dropped. On the consuming side the
// Aggregator folds events into running totals served by Handler.
package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/kafka"
)

// Publisher writes a batch of events to the event stream.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector accumulates interaction events and flushes them to a Publisher.
type Collector struct {
	publisher     Publisher
	mu            sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	maxBuffer     int
	flushInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}
	flushes       sync.WaitGroup
}

// NewCollector creates a Collector that flushes when batchSize events are
// buffered or after flushInterval. At most maxBuffer events are held; newer
// events are dropped beyond that.
func NewCollector(publisher Publisher, batchSize, maxBuffer int, flushInterval time.Duration) *Collector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxBuffer < batchSize {
		maxBuffer = batchSize
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		publisher:     publisher,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		maxBuffer:     maxBuffer,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "interaction-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the background flush loop, which runs until ctx is
// cancelled.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("interaction collector started",
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// Track buffers an event keyed by session so one session's events stay on
// one partition.
func (c *Collector) Track(event InteractionEvent) {
	c.mu.Lock()
	if len(c.buffer) >= c.maxBuffer {
		c.mu.Unlock()
		c.logger.Warn("interaction event dropped (buffer full)", "type", event.Type)
		return
	}
	c.buffer = append(c.buffer, kafka.Event{Key: event.SessionID, Value: event})
	shouldFlush := len(c.buffer) >= c.batchSize
	c.mu.Unlock()

	if shouldFlush {
		c.flushes.Add(1)
		go func() {
			defer c.flushes.Done()
			c.flush(context.Background())
		}()
	}
}

// Close waits for the flush loop and any in-flight flushes to finish.
func (c *Collector) Close() {
	<-c.done
	c.flushes.Wait()
}

// BufferLen returns the current number of buffered events.
func (c *Collector) BufferLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

func (c *Collector) flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]kafka.Event, 0, c.batchSize)
	c.mu.Unlock()

	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("batch flush failed, events dropped",
			"batch_size", len(batch),
			"error", err,
		)
		return
	}
	c.logger.Debug("batch flushed", "events", len(batch))
}
