package correlation

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"askbridge/internal/model"
)

const retiredCacheSize = 256

// Registry tracks outstanding questions and the "last question" fallback
// slot. All methods are safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	pending map[string]*Waiter
	last    string
	closed  bool

	// retired remembers recently answered identities so late quoted replies
	// can be told apart from replies to unknown messages.
	retired *lru.Cache[string, struct{}]
}

func NewRegistry() *Registry {
	retired, err := lru.New[string, struct{}](retiredCacheSize)
	if err != nil {
		panic(err) // only for a non-positive size
	}
	return &Registry{
		pending: make(map[string]*Waiter),
		retired: retired,
	}
}

// Register inserts a waiter for id and makes it the last question. The
// previous last question stays outstanding and is reachable by quote only.
func (r *Registry) Register(id string) (*Waiter, error) {
	w, err := r.Reserve(id)
	if err != nil {
		return nil, err
	}
	r.Activate(id)
	return w, nil
}

// Reserve inserts a waiter for id without touching the last question slot,
// so the identity is claimed before the tagged text leaves the process.
// Follow with Activate once the text is sent, or Release if sending fails.
func (r *Registry) Reserve(id string) (*Waiter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, model.ErrRegistryClosed
	}
	if _, exists := r.pending[id]; exists {
		return nil, model.ErrIdentityInUse
	}
	w := newWaiter()
	r.pending[id] = w
	return w, nil
}

// Activate makes a reserved id the last question. It is a no-op when id is
// no longer outstanding.
func (r *Registry) Activate(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[id]; ok {
		r.last = id
	}
}

// Release drops id without resolving or retiring it.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, id)
	if r.last == id {
		r.last = ""
	}
}

// Resolve hands answer to the waiter for id and retires it. A miss is a
// no-op that returns false.
func (r *Registry) Resolve(id, answer string) bool {
	r.mu.Lock()
	w, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
		if r.last == id {
			r.last = ""
		}
		r.retired.Add(id, struct{}{})
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	return w.resolve(answer, nil)
}

// PeekLast returns the most recently registered unanswered identity.
func (r *Registry) PeekLast() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.last != ""
}

// Lookup picks the identity a reply targets and checks it is outstanding in
// one step. A non-empty quoted id is the only candidate; otherwise the last
// question is.
func (r *Registry) Lookup(quoted string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := quoted
	if id == "" {
		id = r.last
	}
	if id == "" {
		return "", false
	}
	_, ok := r.pending[id]
	return id, ok
}

func (r *Registry) Outstanding(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[id]
	return ok
}

// Retired reports whether id was answered recently.
func (r *Registry) Retired(id string) bool {
	return r.retired.Contains(id)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close interrupts every outstanding waiter with model.ErrInterrupted and
// rejects later registrations. It returns the interrupted identities.
func (r *Registry) Close() []string {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	waiters := r.pending
	r.pending = make(map[string]*Waiter)
	r.last = ""
	r.mu.Unlock()

	ids := make([]string, 0, len(waiters))
	for id, w := range waiters {
		if w.resolve("", model.ErrInterrupted) {
			ids = append(ids, id)
		}
	}
	return ids
}
