package crawler

// queuedURL is a frontier entry
type queuedURL struct {
	URL   string
	Depth int
}

// frontier is the BFS queue together with the visited set. A URL enters the
// queue at most once per run. It is owned by the dispatching goroutine and
// not safe for concurrent use.
type frontier struct {
	queue   []queuedURL
	head    int
	visited map[string]struct{}
}

func newFrontier() *frontier {
	return &frontier{visited: make(map[string]struct{})}
}

// Push enqueues url unless it was seen before, reporting whether it was added
func (f *frontier) Push(url string, depth int) bool {
	if _, seen := f.visited[url]; seen {
		return false
	}
	f.visited[url] = struct{}{}
	f.queue = append(f.queue, queuedURL{URL: url, Depth: depth})
	return true
}

// Pop dequeues the oldest entry
func (f *frontier) Pop() (queuedURL, bool) {
	if f.head >= len(f.queue) {
		return queuedURL{}, false
	}

	item := f.queue[f.head]
	f.queue[f.head] = queuedURL{}
	f.head++
	f.compact()

	return item, true
}

// PopLayer dequeues every entry sharing the depth of the head entry. Entries
// are pushed in nondecreasing depth order, so this is one whole BFS layer.
func (f *frontier) PopLayer() []queuedURL {
	if f.head >= len(f.queue) {
		return nil
	}

	depth := f.queue[f.head].Depth
	end := f.head
	for end < len(f.queue) && f.queue[end].Depth == depth {
		end++
	}

	layer := make([]queuedURL, end-f.head)
	copy(layer, f.queue[f.head:end])
	clear(f.queue[f.head:end])
	f.head = end
	f.compact()

	return layer
}

// Len returns the number of queued entries
func (f *frontier) Len() int {
	return len(f.queue) - f.head
}

// Seen reports whether url was ever enqueued
func (f *frontier) Seen(url string) bool {
	_, seen := f.visited[url]
	return seen
}

// compact drops the consumed prefix once it dominates the backing array
func (f *frontier) compact() {
	if f.head > 1024 && f.head*2 > len(f.queue) {
		f.queue = append([]queuedURL(nil), f.queue[f.head:]...)
		f.head = 0
	}
}
