package notification

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gravadigital/billetterie-api/internal/logger"
)

const deliveryTimeout = 30 * time.Second

// AsyncNotifier delivers requests on a pool of in-process workers
type AsyncNotifier struct {
	dispatcher *Dispatcher
	queue      chan Request
	wg         sync.WaitGroup
	mu         sync.RWMutex
	closed     bool
	log        *log.Logger
}

// NewAsyncNotifier starts workers goroutines reading from a queue of bufferSize requests
func NewAsyncNotifier(dispatcher *Dispatcher, workers, bufferSize int) *AsyncNotifier {
	if workers <= 0 {
		workers = 1
	}
	if bufferSize < 0 {
		bufferSize = 0
	}

	n := &AsyncNotifier{
		dispatcher: dispatcher,
		queue:      make(chan Request, bufferSize),
		log:        logger.Notification("inprocess"),
	}

	for i := 0; i < workers; i++ {
		n.wg.Add(1)
		go n.worker(i)
	}

	n.log.Info("Notification workers started", "workers", workers, "buffer", bufferSize)
	return n
}

func (n *AsyncNotifier) worker(id int) {
	defer n.wg.Done()
	for req := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		_ = n.dispatcher.Deliver(ctx, req)
		cancel()
	}
	n.log.Debug("Notification worker stopped", "worker", id)
}

// Notify queues the request. It is dropped with a warning when the queue is full or closed.
func (n *AsyncNotifier) Notify(ctx context.Context, req Request) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		n.log.Warn("Notifier closed, dropping notification", "kind", req.Kind, "recipient", req.Recipient)
		return
	}

	select {
	case n.queue <- req:
	default:
		n.log.Warn("Notification queue full, dropping notification", "kind", req.Kind, "recipient", req.Recipient)
	}
}

// Close stops accepting requests and waits for queued ones to be delivered
func (n *AsyncNotifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	n.wg.Wait()
	n.log.Info("Notification workers stopped")
	return nil
}
