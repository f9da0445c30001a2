package surface

import "sync"

// emitter fans a value out to its subscribers. Subscribe and emit may be
// called from different goroutines.
type emitter[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(T)
}

func (e *emitter[T]) subscribe(fn func(T)) (dispose func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.subs == nil {
		e.subs = map[int]func(T){}
	}
	id := e.nextID
	e.nextID++
	e.subs[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

func (e *emitter[T]) emit(v T) {
	e.mu.Lock()
	subs := make([]func(T), 0, len(e.subs))
	for id := 0; id < e.nextID; id++ {
		if fn, ok := e.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	e.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
}
