package crawler

import "sync"

// budget bounds the number of successfully fetched pages. Workers reserve a
// slot before fetching and release it afterwards; only successful fetches
// consume the slot, so fetched never exceeds the limit.
type budget struct {
	mu       sync.Mutex
	cond     *sync.Cond
	limit    int // <= 0 means unlimited
	fetched  int
	inFlight int
}

func newBudget(limit int) *budget {
	b := &budget{limit: limit}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// reserve blocks while the in-flight fetches could still fill the budget.
// It returns false once the budget is spent.
func (b *budget) reserve() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.limit > 0 && b.fetched+b.inFlight >= b.limit {
		if b.inFlight == 0 {
			return false
		}
		b.cond.Wait()
	}
	b.inFlight++
	return true
}

// release returns a reservation, counting it when the fetch succeeded
func (b *budget) release(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.inFlight--
	if ok {
		b.fetched++
	}
	b.cond.Broadcast()
}

// exhausted reports whether no further fetch may start
func (b *budget) exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.limit > 0 && b.fetched >= b.limit
}

func (b *budget) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.fetched
}
