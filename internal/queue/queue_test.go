package queue

import (
	"reflect"
	"testing"

	"modelsync/internal/models"
)

func TestEnqueueOrderingAndDequeue(t *testing.T) {
	q := New()
	var sizes []int
	q.OnSizeChanged(func(size int) { sizes = append(sizes, size) })

	if !q.Add("https://civitai.com/models/100") {
		t.Fatal("expected first add to succeed")
	}
	if !q.Add("https://civitai.com/models/200") {
		t.Fatal("expected second add to succeed")
	}
	if !reflect.DeepEqual(sizes, []int{1, 2}) {
		t.Fatalf("expected size sequence [1,2], got %v", sizes)
	}

	task := q.NextUrl()
	if task == nil || task.Url != "https://civitai.com/models/100" {
		t.Fatalf("expected to dequeue the 100 task first, got %+v", task)
	}
	if task.Status != models.StatusDownloading {
		t.Fatalf("expected dequeued task to be DOWNLOADING, got %v", task.Status)
	}

	remaining := q.Pending()
	if !reflect.DeepEqual(remaining, []string{"https://civitai.com/models/200"}) {
		t.Fatalf("expected only the 200 url pending, got %v", remaining)
	}
	snap, ok := q.Get("https://civitai.com/models/200")
	if !ok || snap.Priority != 0 {
		t.Fatalf("expected remaining task to have priority 0, got %+v", snap)
	}
}

func TestReorder(t *testing.T) {
	q := New()
	q.AddMany([]string{"A", "B", "C"})
	var reordered [][]string
	q.OnReordered(func(order []string) { reordered = append(reordered, order) })

	q.MoveToPosition("C", 0)

	want := []string{"C", "A", "B"}
	if !reflect.DeepEqual(q.Pending(), want) {
		t.Fatalf("expected order %v, got %v", want, q.Pending())
	}
	if len(reordered) != 1 || !reflect.DeepEqual(reordered[0], want) {
		t.Fatalf("expected one reorder event with %v, got %v", want, reordered)
	}
	for i, u := range want {
		snap, _ := q.Get(u)
		if snap.Priority != i {
			t.Fatalf("expected priority %d for %s, got %d", i, u, snap.Priority)
		}
	}
}

func TestPriorityInvariantAfterEveryMutation(t *testing.T) {
	q := New()
	q.AddMany([]string{"A", "B", "C", "D"})
	q.MoveToPosition("D", 0)
	q.Cancel("B")
	q.NextUrl()

	for i, u := range q.Pending() {
		snap, _ := q.Get(u)
		if snap.Priority != i {
			t.Fatalf("priority invariant violated: %s at index %d has priority %d", u, i, snap.Priority)
		}
	}
}

func TestMoveToPositionClampsBounds(t *testing.T) {
	q := New()
	q.AddMany([]string{"A", "B", "C"})

	q.MoveToPosition("C", -5)
	if q.Pending()[0] != "C" {
		t.Fatalf("expected negative index to clamp to 0, got %v", q.Pending())
	}

	q.MoveToPosition("A", 1_000_000)
	if q.Pending()[len(q.Pending())-1] != "A" {
		t.Fatalf("expected huge index to clamp to end, got %v", q.Pending())
	}
}

func TestAddManyEmpty(t *testing.T) {
	q := New()
	if n := q.AddMany(nil); n != 0 {
		t.Fatalf("expected 0 accepted for empty slice, got %d", n)
	}
	if len(q.Pending()) != 0 {
		t.Fatalf("expected queue unchanged")
	}
}

func TestCancelUnknownAndTerminal(t *testing.T) {
	q := New()
	if q.Cancel("nope") {
		t.Fatal("expected cancel of unknown url to return false")
	}
	q.Add("X")
	q.NextUrl()
	q.Complete("X", models.StatusCompleted, "", nil)
	if q.Cancel("X") {
		t.Fatal("expected cancel of terminal task to return false")
	}
}

func TestTerminalStatesAreAbsorbing(t *testing.T) {
	q := New()
	q.Add("X")
	q.NextUrl()
	q.Complete("X", models.StatusFailed, "boom", nil)

	q.Update("X", func(t *models.DownloadTask) { t.Status = models.StatusQueued })

	snap, _ := q.Get("X")
	if snap.Status != models.StatusFailed {
		t.Fatalf("expected terminal status to stick, got %v", snap.Status)
	}
}

func TestClearCancelsAllPending(t *testing.T) {
	q := New()
	q.AddMany([]string{"A", "B"})
	q.Clear()

	if len(q.Pending()) != 0 {
		t.Fatalf("expected empty pending list after clear")
	}
	for _, u := range []string{"A", "B"} {
		snap, ok := q.Get(u)
		if !ok || snap.Status != models.StatusCanceled {
			t.Fatalf("expected %s CANCELED after clear, got %+v", u, snap)
		}
	}
}
