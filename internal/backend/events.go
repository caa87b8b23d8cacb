package backend

import (
	"sync"

	"github.com/studyhall/studyhall-go/internal/model"
)

// emission is one queued notification. target limits delivery to a
// single subscriber id; broadcast delivers to all.
type emission struct {
	event   AuthEvent
	session *model.Session
	target  int
}

const broadcast = -1

// broadcaster fans auth state changes out to subscribers. Deliveries run
// on a single dispatch goroutine so subscribers observe events in the
// order they were produced.
type broadcaster struct {
	mu      sync.Mutex
	subs    map[int]ChangeFunc
	nextSub int

	events chan emission
	done   chan struct{}
	once   sync.Once
}

func newBroadcaster() *broadcaster {
	b := &broadcaster{
		subs:   make(map[int]ChangeFunc),
		events: make(chan emission, 16),
		done:   make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *broadcaster) run() {
	for {
		select {
		case e := <-b.events:
			b.deliver(e)
		case <-b.done:
			return
		}
	}
}

func (b *broadcaster) deliver(e emission) {
	b.mu.Lock()
	fns := make(map[int]ChangeFunc, len(b.subs))
	for id, fn := range b.subs {
		fns[id] = fn
	}
	b.mu.Unlock()

	for id, fn := range fns {
		if e.target != broadcast && id != e.target {
			continue
		}
		fn(e.event, e.session)
	}
}

func (b *broadcaster) subscribe(fn ChangeFunc) (id int, unsubscribe func()) {
	b.mu.Lock()
	id = b.nextSub
	b.nextSub++
	b.subs[id] = fn
	b.mu.Unlock()

	return id, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *broadcaster) emit(e emission) {
	select {
	case b.events <- e:
	case <-b.done:
	}
}

func (b *broadcaster) close() {
	b.once.Do(func() { close(b.done) })
}
