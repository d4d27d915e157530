package events

import (
	"sync"

	"github.com/zatekoja/itineraryconcierge/internal/domain/entities"
)

const subscriberBuffer = 100

// fanout is a registry of per-channel subscriber queues. Delivery never
// blocks: a full queue drops the event for that subscriber only. The zero
// value is ready to use.
type fanout struct {
	mu     sync.RWMutex
	queues map[string]map[chan *entities.PlanEvent]struct{}
	closed bool
}

// add registers a queue on channel. first is true when channel had no queues.
// After shutdown it returns a closed queue.
func (f *fanout) add(channel string) (queue chan *entities.PlanEvent, first bool) {
	queue = make(chan *entities.PlanEvent, subscriberBuffer)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(queue)
		return queue, false
	}
	if f.queues == nil {
		f.queues = make(map[string]map[chan *entities.PlanEvent]struct{})
	}
	if f.queues[channel] == nil {
		f.queues[channel] = make(map[chan *entities.PlanEvent]struct{})
		first = true
	}
	f.queues[channel][queue] = struct{}{}
	return queue, first
}

// remove closes queue. last is true when channel has no queues left.
func (f *fanout) remove(channel string, queue chan *entities.PlanEvent) (last bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	queues, ok := f.queues[channel]
	if !ok {
		return false
	}
	if _, ok := queues[queue]; !ok {
		return false
	}
	delete(queues, queue)
	close(queue)
	if len(queues) == 0 {
		delete(f.queues, channel)
		return true
	}
	return false
}

// deliver hands each queue on channel its own copy of event and returns how
// many queues were full.
func (f *fanout) deliver(channel string, event *entities.PlanEvent) (dropped int) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for queue := range f.queues[channel] {
		select {
		case queue <- clonePlanEvent(event):
		default:
			dropped++
		}
	}
	return dropped
}

// drop closes every queue on channel.
func (f *fanout) drop(channel string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for queue := range f.queues[channel] {
		close(queue)
	}
	delete(f.queues, channel)
}

// shutdown closes every queue and refuses new ones.
func (f *fanout) shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for channel, queues := range f.queues {
		for queue := range queues {
			close(queue)
		}
		delete(f.queues, channel)
	}
	f.closed = true
}

func (f *fanout) count(channel string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.queues[channel])
}

func clonePlanEvent(event *entities.PlanEvent) *entities.PlanEvent {
	cp := *event
	cp.ChangedPaths = append([]string(nil), event.ChangedPaths...)
	return &cp
}
