package crawler

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestFrontierFIFO(t *testing.T) {
	f := newFrontier()

	for _, url := range []string{"a", "b", "c"} {
		if !f.Push(url, 0) {
			t.Errorf("Push(%q) = false, want true", url)
		}
	}
	if f.Push("b", 3) {
		t.Error("Push of a visited URL should be rejected")
	}
	if f.Len() != 3 {
		t.Errorf("Len() = %d, want 3", f.Len())
	}

	for _, want := range []string{"a", "b", "c"} {
		item, ok := f.Pop()
		if !ok || item.URL != want {
			t.Errorf("Pop() = %v, %v; want %q", item, ok, want)
		}
	}
	if _, ok := f.Pop(); ok {
		t.Error("Pop() on empty frontier should fail")
	}

	// Popped URLs remain visited
	if f.Push("a", 0) || !f.Seen("a") {
		t.Error("popped URL was forgotten")
	}
}

func TestFrontierPopLayer(t *testing.T) {
	f := newFrontier()
	f.Push("seed", 0)
	f.Push("a", 1)
	f.Push("b", 1)
	f.Push("c", 2)

	tests := []struct {
		want  []string
		depth int
	}{
		{[]string{"seed"}, 0},
		{[]string{"a", "b"}, 1},
		{[]string{"c"}, 2},
	}

	for _, tt := range tests {
		layer := f.PopLayer()
		if len(layer) != len(tt.want) {
			t.Fatalf("PopLayer() = %v, want %v", layer, tt.want)
		}
		for i, item := range layer {
			if item.URL != tt.want[i] || item.Depth != tt.depth {
				t.Errorf("layer[%d] = %+v, want %s at depth %d", i, item, tt.want[i], tt.depth)
			}
		}
	}

	if layer := f.PopLayer(); layer != nil {
		t.Errorf("PopLayer() on empty frontier = %v", layer)
	}
}

func TestFrontierCompaction(t *testing.T) {
	f := newFrontier()
	for i := 0; i < 5000; i++ {
		f.Push(fmt.Sprint(i), 0)
	}
	for i := 0; i < 4000; i++ {
		item, _ := f.Pop()
		if item.URL != fmt.Sprint(i) {
			t.Fatalf("Pop() = %q, want %d", item.URL, i)
		}
	}
	if f.Len() != 1000 {
		t.Errorf("Len() = %d, want 1000", f.Len())
	}
	if item, _ := f.Pop(); item.URL != "4000" {
		t.Errorf("Pop() after compaction = %q, want 4000", item.URL)
	}
}

func TestBudget(t *testing.T) {
	b := newBudget(2)

	if !b.reserve() {
		t.Fatal("first reserve failed")
	}
	b.release(false) // failed fetch does not count
	if b.count() != 0 {
		t.Errorf("count() = %d after failure, want 0", b.count())
	}

	for i := 0; i < 2; i++ {
		if !b.reserve() {
			t.Fatalf("reserve %d failed", i)
		}
		b.release(true)
	}

	if !b.exhausted() {
		t.Error("budget should be exhausted")
	}
	if b.reserve() {
		t.Error("reserve on exhausted budget should fail")
	}
}

func TestBudgetUnlimited(t *testing.T) {
	b := newBudget(0)
	for i := 0; i < 1000; i++ {
		if !b.reserve() {
			t.Fatalf("reserve %d failed on unlimited budget", i)
		}
		b.release(true)
	}
	if b.exhausted() {
		t.Error("unlimited budget reported exhausted")
	}
}

func TestBudgetWaitsForInFlight(t *testing.T) {
	b := newBudget(1)
	if !b.reserve() {
		t.Fatal("reserve failed")
	}

	var wg sync.WaitGroup
	var second bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		second = b.reserve()
		if second {
			b.release(true)
		}
	}()

	// The in-flight fetch fails, freeing its slot for the waiter
	time.Sleep(20 * time.Millisecond)
	b.release(false)
	wg.Wait()

	if !second {
		t.Error("waiter should get the slot released by a failed fetch")
	}
	if b.count() != 1 {
		t.Errorf("count() = %d, want 1", b.count())
	}
}
