package caption

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"slideflow/models"
	"slideflow/services/slideshow"
)

// blockingGenerator lets tests hold caption requests open and release them
// in a chosen order.
type blockingGenerator struct {
	mu       sync.Mutex
	pending  []pendingRequest
	started  chan struct{}
	calls    int
	lastInst string
}

type pendingRequest struct {
	itemID string
	done   chan result
}

type result struct {
	text string
	err  error
}

func newBlockingGenerator() *blockingGenerator {
	return &blockingGenerator{started: make(chan struct{}, 16)}
}

func (g *blockingGenerator) Generate(ctx context.Context, instruction string, item models.MediaItem, credential string) (string, error) {
	done := make(chan result, 1)
	g.mu.Lock()
	g.calls++
	g.lastInst = instruction
	g.pending = append(g.pending, pendingRequest{itemID: item.ID, done: done})
	g.mu.Unlock()
	g.started <- struct{}{}

	r := <-done
	return r.text, r.err
}

// release completes the oldest pending request for itemID.
func (g *blockingGenerator) release(t *testing.T, itemID, text string, err error) {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, p := range g.pending {
		if p.itemID == itemID {
			p.done <- result{text: text, err: err}
			g.pending = append(g.pending[:i], g.pending[i+1:]...)
			return
		}
	}
	t.Fatalf("no pending request for item %s", itemID)
}

func (g *blockingGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *blockingGenerator) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-g.started:
	case <-time.After(2 * time.Second):
		t.Fatal("caption request never started")
	}
}

type staticTokens struct {
	token string
	ok    bool
}

func (s staticTokens) GetValidAccessToken(ctx context.Context) (string, bool) {
	return s.token, s.ok
}

// gatedTokens models a broker stuck in a slow network refresh: every read
// blocks until the gate closes.
type gatedTokens struct {
	gate chan struct{}
}

func (g gatedTokens) GetValidAccessToken(ctx context.Context) (string, bool) {
	<-g.gate
	return "tok", true
}

func testItem(id string) models.MediaItem {
	return models.MediaItem{ID: id, Title: "title " + id, Channel: "pics", Kind: models.MediaKindImage}
}

func waitForState(t *testing.T, c *Coordinator, want models.CaptionState) models.CaptionRecord {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec := c.Record()
		if rec.State == want {
			return rec
		}
		if time.Now().After(deadline) {
			t.Fatalf("caption record never reached %s, stuck at %+v", want, rec)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCaptionSuccess(t *testing.T) {
	gen := newBlockingGenerator()
	c := NewCoordinator(gen, staticTokens{token: "tok", ok: true}, "describe it", true)

	c.OnItemChanged(testItem("a"))
	gen.waitStarted(t)

	rec := c.Record()
	if rec.State != models.CaptionStateLoading || rec.ItemID != "a" {
		t.Fatalf("expected loading record for a, got %+v", rec)
	}

	gen.release(t, "a", "A lovely sunrise.", nil)
	rec = waitForState(t, c, models.CaptionStateReady)
	if rec.Text != "A lovely sunrise." || rec.Error != "" {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestCaptionFailureSurfacedForCurrentItemOnly(t *testing.T) {
	gen := newBlockingGenerator()
	c := NewCoordinator(gen, staticTokens{token: "tok", ok: true}, "inst", true)

	c.OnItemChanged(testItem("a"))
	gen.waitStarted(t)
	gen.release(t, "a", "", errors.New("backend exploded"))

	rec := waitForState(t, c, models.CaptionStateError)
	if rec.Error == "" || rec.ItemID != "a" {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestStaleResultDiscarded(t *testing.T) {
	gen := newBlockingGenerator()
	c := NewCoordinator(gen, staticTokens{token: "tok", ok: true}, "inst", true)

	// Item a's request is slow; b becomes current and completes first.
	c.OnItemChanged(testItem("a"))
	gen.waitStarted(t)
	c.OnItemChanged(testItem("b"))
	gen.waitStarted(t)

	gen.release(t, "b", "Fresh caption for b.", nil)
	before := waitForState(t, c, models.CaptionStateReady)

	// Now the slow result for a arrives; the record must not move.
	gen.release(t, "a", "Slow caption for a.", nil)
	time.Sleep(50 * time.Millisecond)

	after := c.Record()
	if after != before {
		t.Errorf("stale completion mutated the record: before=%+v after=%+v", before, after)
	}
}

func TestStaleErrorAlsoDiscarded(t *testing.T) {
	gen := newBlockingGenerator()
	c := NewCoordinator(gen, staticTokens{token: "tok", ok: true}, "inst", true)

	c.OnItemChanged(testItem("a"))
	gen.waitStarted(t)
	c.OnItemChanged(testItem("b"))
	gen.waitStarted(t)

	gen.release(t, "b", "b caption", nil)
	before := waitForState(t, c, models.CaptionStateReady)

	gen.release(t, "a", "", errors.New("late failure"))
	time.Sleep(50 * time.Millisecond)

	if after := c.Record(); after != before {
		t.Errorf("stale error mutated the record: %+v", after)
	}
}

func TestNoCredentialMeansUnavailableNotError(t *testing.T) {
	gen := newBlockingGenerator()
	c := NewCoordinator(gen, staticTokens{ok: false}, "inst", true)

	c.OnItemChanged(testItem("a"))

	rec := waitForState(t, c, models.CaptionStateUnavailable)
	if rec.Error != "" {
		t.Error("unavailable is not an error state")
	}
	if gen.callCount() != 0 {
		t.Errorf("no request may be issued without a credential, saw %d", gen.callCount())
	}
}

func TestDisabledCaptions(t *testing.T) {
	gen := newBlockingGenerator()
	c := NewCoordinator(gen, staticTokens{token: "tok", ok: true}, "inst", false)

	c.OnItemChanged(testItem("a"))
	if gen.callCount() != 0 {
		t.Error("disabled captioning must not issue requests")
	}
	if rec := c.Record(); rec.State != models.CaptionStateUnavailable {
		t.Errorf("expected unavailable, got %+v", rec)
	}
}

func TestRegenerateNewestWins(t *testing.T) {
	gen := newBlockingGenerator()
	c := NewCoordinator(gen, staticTokens{token: "tok", ok: true}, "inst", true)

	c.OnItemChanged(testItem("a"))
	gen.waitStarted(t)

	// Regenerate while the first request is still loading for the same item.
	c.Regenerate()
	gen.waitStarted(t)
	if gen.callCount() != 2 {
		t.Fatalf("regenerate must re-issue unconditionally, calls=%d", gen.callCount())
	}

	gen.release(t, "a", "first", nil)
	waitForState(t, c, models.CaptionStateReady)
	gen.release(t, "a", "second", nil)

	deadline := time.Now().Add(2 * time.Second)
	for c.Record().Text != "second" {
		if time.Now().After(deadline) {
			t.Fatalf("newest result did not win: %+v", c.Record())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRegenerateWithoutCurrentItemIsNoop(t *testing.T) {
	gen := newBlockingGenerator()
	c := NewCoordinator(gen, staticTokens{token: "tok", ok: true}, "inst", true)

	c.Regenerate()
	if gen.callCount() != 0 {
		t.Error("regenerate with no current item must do nothing")
	}
}

func TestItemChangeNotBlockedByCredentialFetch(t *testing.T) {
	gen := newBlockingGenerator()
	gate := make(chan struct{})
	c := NewCoordinator(gen, gatedTokens{gate: gate}, "inst", true)

	start := time.Now()
	c.OnItemChanged(testItem("a"))
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("OnItemChanged blocked %v on the credential read", elapsed)
	}

	// The record is already loading while the credential read is stuck.
	if rec := c.Record(); rec.State != models.CaptionStateLoading || rec.ItemID != "a" {
		t.Fatalf("expected loading record for a, got %+v", rec)
	}

	close(gate)
	gen.waitStarted(t)
	gen.release(t, "a", "finally", nil)
	if rec := waitForState(t, c, models.CaptionStateReady); rec.Text != "finally" {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestSlideshowAdvanceNotBlockedByCredentialFetch(t *testing.T) {
	gen := newBlockingGenerator()
	gate := make(chan struct{})
	c := NewCoordinator(gen, gatedTokens{gate: gate}, "inst", true)

	ctrl := slideshow.NewController(time.Hour, models.TransitionNone)
	defer ctrl.Close()
	ctrl.Subscribe(c.OnItemChanged)
	ctrl.SetPlaylist([]models.MediaItem{testItem("a"), testItem("b"), testItem("c")})

	// Navigation must complete while the credential read is stuck.
	start := time.Now()
	ctrl.Next()
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("Next blocked %v on the credential read", elapsed)
	}
	if pos := ctrl.State().Position; pos != 1 {
		t.Fatalf("expected position 1, got %d", pos)
	}

	close(gate)
	gen.waitStarted(t)
	gen.waitStarted(t)
	gen.release(t, "a", "cap a", nil)
	gen.release(t, "b", "cap b", nil)
	waitForState(t, c, models.CaptionStateReady)
}

func TestInstructionAppliesToNextRequest(t *testing.T) {
	gen := newBlockingGenerator()
	c := NewCoordinator(gen, staticTokens{token: "tok", ok: true}, "old instruction", true)

	c.OnItemChanged(testItem("a"))
	gen.waitStarted(t)
	gen.release(t, "a", "cap", nil)
	waitForState(t, c, models.CaptionStateReady)

	c.SetInstruction("new instruction")
	c.OnItemChanged(testItem("b"))
	gen.waitStarted(t)

	gen.mu.Lock()
	got := gen.lastInst
	gen.mu.Unlock()
	if got != "new instruction" {
		t.Errorf("next request should carry the updated instruction, got %q", got)
	}
	gen.release(t, "b", "cap b", nil)
}
