package presence

import (
	"sync"
	"testing"

	"github.com/ruhul03/crisis-connect/pkg/types"
)

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []capturedEvent
}

type capturedEvent struct {
	topic   string
	payload interface{}
}

func (p *capturePublisher) Publish(topic string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedEvent{topic: topic, payload: payload})
}

func (p *capturePublisher) byTopic(topic string) []capturedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []capturedEvent
	for _, e := range p.events {
		if e.topic == topic {
			out = append(out, e)
		}
	}
	return out
}

func newTestBoard() (*Board, *capturePublisher) {
	pub := &capturePublisher{}
	return NewBoard(pub), pub
}

func TestUpsertStoresAndPublishes(t *testing.T) {
	board, pub := newTestBoard()

	stored := board.Upsert(&types.StatusEntry{UserID: "u1", UserName: "Alice", Status: types.StatusSafe})
	if stored.Timestamp.IsZero() {
		t.Error("Upsert must stamp the timestamp")
	}

	got, exists := board.Get("u1")
	if !exists {
		t.Fatal("entry not stored")
	}
	if got.Status != types.StatusSafe || got.UserName != "Alice" {
		t.Errorf("unexpected entry: %+v", got)
	}

	if events := pub.byTopic(TopicStatus); len(events) != 1 {
		t.Errorf("expected 1 status notification, got %d", len(events))
	}
}

func TestUpsertReplacesPriorEntry(t *testing.T) {
	board, _ := newTestBoard()

	board.Upsert(&types.StatusEntry{UserID: "u1", UserName: "Alice", Status: types.StatusSafe})
	board.Upsert(&types.StatusEntry{UserID: "u1", UserName: "Alice", Status: types.StatusNeedHelp})

	got, _ := board.Get("u1")
	if got.Status != types.StatusNeedHelp {
		t.Errorf("expected NEED_HELP, got %s", got.Status)
	}
	if len(board.All()) != 1 {
		t.Error("at most one entry per userId")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	board, _ := newTestBoard()
	board.Upsert(&types.StatusEntry{UserID: "u1", UserName: "Alice", Status: types.StatusSafe})

	got, _ := board.Get("u1")
	got.Status = "TAMPERED"

	again, _ := board.Get("u1")
	if again.Status != types.StatusSafe {
		t.Error("Get must return a copy, not the stored entry")
	}
}

func TestRemove(t *testing.T) {
	board, pub := newTestBoard()

	if board.Remove("ghost") {
		t.Error("removing an absent user must report not removed")
	}
	if events := pub.byTopic(TopicStatusRemoved); len(events) != 0 {
		t.Error("no notification expected for absent user")
	}

	board.Upsert(&types.StatusEntry{UserID: "u1", UserName: "Alice", Status: types.StatusSafe})
	if !board.Remove("u1") {
		t.Error("removing a present user must report removed")
	}
	if _, exists := board.Get("u1"); exists {
		t.Error("entry still present after Remove")
	}
	if events := pub.byTopic(TopicStatusRemoved); len(events) != 1 {
		t.Errorf("expected exactly one removal notification, got %d", len(events))
	}
}

func TestRemoveDropsAllUserSessions(t *testing.T) {
	board, pub := newTestBoard()

	board.Upsert(&types.StatusEntry{UserID: "u1", UserName: "Alice", Status: types.StatusSafe})
	board.RegisterSession("s1", "u1")
	board.RegisterSession("s2", "u1")
	board.Remove("u1")

	if board.SessionCount() != 0 {
		t.Error("Remove must drop every session for the user")
	}

	// A stale EndSession afterwards must not publish anything new.
	before := len(pub.byTopic(TopicStatus))
	board.EndSession("s1")
	if len(pub.byTopic(TopicStatus)) != before {
		t.Error("EndSession after Remove must be a no-op")
	}
}

func TestMultiSessionOfflineRule(t *testing.T) {
	board, pub := newTestBoard()

	board.Upsert(&types.StatusEntry{UserID: "u1", UserName: "Alice", Status: types.StatusNeedHelp})
	board.RegisterSession("s1", "u1")
	board.RegisterSession("s2", "u1")

	notificationsBefore := len(pub.byTopic(TopicStatus))

	board.EndSession("s1")
	got, _ := board.Get("u1")
	if got.Status != types.StatusNeedHelp {
		t.Errorf("status changed while another session remains: %s", got.Status)
	}
	if len(pub.byTopic(TopicStatus)) != notificationsBefore {
		t.Error("no notification expected while sessions remain")
	}

	board.EndSession("s2")
	got, _ = board.Get("u1")
	if got.Status != types.StatusOffline {
		t.Errorf("expected OFFLINE after last session ended, got %s", got.Status)
	}
	if got.Timestamp.IsZero() {
		t.Error("OFFLINE transition must stamp the timestamp")
	}
	if len(pub.byTopic(TopicStatus)) != notificationsBefore+1 {
		t.Error("exactly one notification expected for the OFFLINE transition")
	}
}

func TestEndSessionUnknownIsNoOp(t *testing.T) {
	board, pub := newTestBoard()
	board.EndSession("never-registered")
	if len(pub.events) != 0 {
		t.Error("unknown session must not publish anything")
	}
}

func TestEndSessionWithoutBoardEntry(t *testing.T) {
	board, pub := newTestBoard()
	board.RegisterSession("s1", "u1")
	board.EndSession("s1")
	if len(pub.byTopic(TopicStatus)) != 0 {
		t.Error("no status entry means nothing to flip OFFLINE")
	}
}

func TestCounts(t *testing.T) {
	board, _ := newTestBoard()

	board.Upsert(&types.StatusEntry{UserID: "u1", Status: types.StatusSafe})
	board.Upsert(&types.StatusEntry{UserID: "u2", Status: types.StatusCritical})
	board.Upsert(&types.StatusEntry{UserID: "u3", Status: types.StatusNeedHelp})
	board.Upsert(&types.StatusEntry{UserID: "u4", Status: types.StatusOffline})

	if got := board.ActiveCount(); got != 3 {
		t.Errorf("ActiveCount = %d, want 3", got)
	}
	if got := board.CriticalCount(); got != 2 {
		t.Errorf("CriticalCount = %d, want 2", got)
	}
}

func TestConcurrentBoardAccess(t *testing.T) {
	board, _ := newTestBoard()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userID := []string{"u1", "u2", "u3", "u4"}[n%4]
			board.Upsert(&types.StatusEntry{UserID: userID, Status: types.StatusSafe})
			board.RegisterSession("sess", userID)
			board.Get(userID)
			board.ActiveCount()
			board.EndSession("sess")
		}(i)
	}
	wg.Wait()

	if got := len(board.All()); got != 4 {
		t.Errorf("expected 4 entries after concurrent upserts, got %d", got)
	}
}
