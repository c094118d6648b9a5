package notify

import (
	"context"
	"sync"
	"time"

	"pos-service/internal/util"

	"go.uber.org/zap"
)

// Publisher relays events beyond this process, e.g. to Kafka.
type Publisher interface {
	Publish(ctx context.Context, event interface{}) error
}

// Keyed is implemented by events that belong to one order. Events sharing a
// key are delivered one at a time, in the order Dispatch received them.
type Keyed interface {
	OrderKey() int64
}

// Dispatcher delivers events after the business write has committed. It
// never reports failure to the caller: delivery errors are logged and end
// there.
type Dispatcher struct {
	hub       *Hub
	publisher Publisher
	timeout   time.Duration
	wg        sync.WaitGroup
	logger    *zap.Logger

	mu sync.Mutex
	// queues holds the events waiting behind the one in flight, per order.
	// A present key means a goroutine is draining it.
	queues map[int64][]interface{}
}

// NewDispatcher creates a dispatcher; publisher may be nil to keep events in-process
func NewDispatcher(hub *Hub, publisher Publisher, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		hub:       hub,
		publisher: publisher,
		timeout:   timeout,
		logger:    util.Logger("dispatcher"),
		queues:    map[int64][]interface{}{},
	}
}

// Dispatch hands event to a background goroutine and returns immediately
func (d *Dispatcher) Dispatch(event interface{}) {
	k, ok := event.(Keyed)
	if !ok {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.safeDeliver(event)
		}()
		return
	}

	key := k.OrderKey()
	d.mu.Lock()
	if pending, running := d.queues[key]; running {
		d.queues[key] = append(pending, event)
		d.mu.Unlock()
		return
	}
	d.queues[key] = nil
	d.mu.Unlock()

	d.wg.Add(1)
	go d.drain(key, event)
}

func (d *Dispatcher) drain(key int64, event interface{}) {
	defer d.wg.Done()
	for {
		d.safeDeliver(event)

		d.mu.Lock()
		pending := d.queues[key]
		if len(pending) == 0 {
			delete(d.queues, key)
			d.mu.Unlock()
			return
		}
		event = pending[0]
		d.queues[key] = pending[1:]
		d.mu.Unlock()
	}
}

func (d *Dispatcher) safeDeliver(event interface{}) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Recovered panic while dispatching event", zap.Any("panic", r))
		}
	}()
	d.deliver(event)
}

func (d *Dispatcher) deliver(event interface{}) {
	delivered := d.hub.Broadcast(event)
	d.logger.Debug("Event broadcast", zap.Int("delivered", delivered))

	if d.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.publisher.Publish(ctx, event); err != nil {
		d.logger.Warn("Failed to relay event", zap.Error(err))
	}
}

// Wait blocks until every dispatched event has been handled
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
