package jobs

import (
	"sync"

	"github.com/seantiz/babelpdf/internal/model"
)

// subscriberBufferSize is the channel buffer for each progress subscriber.
// Snapshots are dropped if a subscriber falls this far behind; the next
// snapshot supersedes anything missed.
const subscriberBufferSize = 16

// Broker fans job status snapshots out to subscribers for server-sent
// events. It is safe for concurrent use.
//
// Closed topics are retained as markers so that late subscribers (those
// subscribing after a job finishes) receive a closed channel instead of
// blocking forever. Each marker is a few bytes, which is acceptable for
// the expected job volume.
type Broker struct {
	mu     sync.Mutex
	topics map[string]*progressTopic
}

type progressTopic struct {
	subs   map[int]chan model.Job
	nextID int
	closed bool
}

// NewBroker creates a new progress broker.
func NewBroker() *Broker {
	return &Broker{
		topics: make(map[string]*progressTopic),
	}
}

// Subscribe returns a channel that receives status snapshots for the given
// job and an unsubscribe function. If the job has already finished (Close
// was called), the returned channel is immediately closed.
func (b *Broker) Subscribe(jobID string) (<-chan model.Job, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[jobID]
	if !ok {
		t = &progressTopic{subs: make(map[int]chan model.Job)}
		b.topics[jobID] = t
	}

	ch := make(chan model.Job, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if t, ok := b.topics[jobID]; ok {
			if ch, ok := t.subs[id]; ok {
				delete(t.subs, id)
				close(ch)
			}
		}
	}
	return ch, unsubscribe
}

// Publish delivers a snapshot to all subscribers of the job. Slow
// subscribers are skipped rather than blocking the runner.
func (b *Broker) Publish(snapshot model.Job) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[snapshot.ID]
	if !ok || t.closed {
		return
	}
	for _, ch := range t.subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// Close marks the job's topic finished and closes all subscriber channels.
func (b *Broker) Close(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[jobID]
	if !ok {
		t = &progressTopic{subs: make(map[int]chan model.Job)}
		b.topics[jobID] = t
	}
	if t.closed {
		return
	}
	t.closed = true
	for id, ch := range t.subs {
		delete(t.subs, id)
		close(ch)
	}
}
