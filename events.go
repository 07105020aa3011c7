package notebook

import (
	"sync"

	"github.com/pedrocostadev/ai-notebook-sub000/scheduler"
)

const subscriberBuffer = 64

// broker fans progress events out to subscribers without blocking the
// scheduler.
type broker struct {
	mu     sync.Mutex
	next   int
	subs   map[int]chan scheduler.Progress
	closed bool
}

func newBroker() *broker {
	return &broker{subs: make(map[int]chan scheduler.Progress)}
}

func (b *broker) subscribe() (<-chan scheduler.Progress, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan scheduler.Progress, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

func (b *broker) publish(event scheduler.Progress) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
