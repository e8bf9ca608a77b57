package queue_test

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/glizzus/mumble-voice/internal/queue"
)

func TestQueueFIFO(t *testing.T) {
	q := queue.New[int]()
	if _, ok := q.Dequeue(); ok {
		t.Fatal("Dequeue on an empty queue reported an item")
	}

	for i := range 5 {
		q.Enqueue(i)
	}
	if q.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", q.Len())
	}
	if v, ok := q.Peek(); !ok || v != 0 {
		t.Errorf("Peek() = %d, %v", v, ok)
	}

	var got []int
	for {
		v, ok := q.Dequeue()
		if !ok {
			break
		}
		got = append(got, v)
	}
	if diff := cmp.Diff([]int{0, 1, 2, 3, 4}, got); diff != "" {
		t.Errorf("dequeue order mismatch (-want +got):\n%s", diff)
	}

	// The queue is reusable after running dry.
	q.Enqueue(9)
	if v, ok := q.Dequeue(); !ok || v != 9 {
		t.Errorf("Dequeue after refill = %d, %v", v, ok)
	}
}

func TestQueueNotifications(t *testing.T) {
	q := queue.New[string]()
	var events []string
	q.OnEnqueue(func(s string) { events = append(events, "log:"+s) })
	q.OnEnqueue(func(s string) {
		events = append(events, "claim:"+s)
		if got, ok := q.Dequeue(); !ok || got != s {
			t.Errorf("claimed %q, %v; want %q", got, ok, s)
		}
	})
	q.OnDequeue(func(s string) { events = append(events, "dequeued:"+s) })

	q.Enqueue("a")
	q.Enqueue("b")
	if _, ok := q.Dequeue(); ok {
		t.Error("item left behind after the consumer claimed it")
	}

	want := []string{
		"log:a", "claim:a", "dequeued:a",
		"log:b", "claim:b", "dequeued:b",
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("notification mismatch (-want +got):\n%s", diff)
	}
}

func TestQueueNotificationDoesNotRemove(t *testing.T) {
	q := queue.New[int]()
	seen := 0
	q.OnEnqueue(func(int) { seen++ })
	q.OnEnqueue(func(int) { seen++ })

	q.Enqueue(1)
	if seen != 2 {
		t.Errorf("listeners called %d times, want 2", seen)
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}
}

func TestQueueConcurrent(t *testing.T) {
	q := queue.New[int]()
	const producers, each = 8, 500

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range each {
				q.Enqueue(p*each + i)
			}
		}()
	}
	wg.Wait()

	seen := make(map[int]bool)
	var mu sync.Mutex
	for range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, ok := q.Dequeue()
				if !ok {
					return
				}
				mu.Lock()
				if seen[v] {
					t.Errorf("item %d dequeued twice", v)
				}
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != producers*each {
		t.Errorf("dequeued %d items, want %d", len(seen), producers*each)
	}
}
