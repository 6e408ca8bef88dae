package caption

import (
	"context"
	"log"
	"sync"

	"slideflow/models"
)

// CaptionGenerator produces one caption for an item. Implemented by
// Generator; tests substitute fakes.
type CaptionGenerator interface {
	Generate(ctx context.Context, instruction string, item models.MediaItem, credential string) (string, error)
}

// TokenSource supplies the caption credential, read immediately before
// each request so a refreshed token is always picked up.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context) (string, bool)
}

// Coordinator triggers caption generation for the currently visible item,
// tracks loading/error/success state, and discards results that complete
// for an item that is no longer current.
type Coordinator struct {
	generator CaptionGenerator
	tokens    TokenSource

	mu          sync.Mutex
	instruction string
	enabled     bool
	current     models.MediaItem
	hasCurrent  bool
	record      models.CaptionRecord
}

// NewCoordinator creates a coordinator. Wire OnItemChanged to the
// slideshow controller's subscription.
func NewCoordinator(generator CaptionGenerator, tokens TokenSource, instruction string, enabled bool) *Coordinator {
	return &Coordinator{
		generator:   generator,
		tokens:      tokens,
		instruction: instruction,
		enabled:     enabled,
		record:      models.CaptionRecord{State: models.CaptionStateIdle},
	}
}

// Record returns the caption state for the current item.
func (c *Coordinator) Record() models.CaptionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record
}

// SetInstruction updates the system instruction used by the next triggered
// request. It does not retroactively regenerate the current caption.
func (c *Coordinator) SetInstruction(instruction string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instruction = instruction
}

// SetEnabled toggles captioning. Disabling does not cancel an in-flight
// request; its result is simply not requested again.
func (c *Coordinator) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

// OnItemChanged records the new current item and kicks off a caption
// request for it. Safe to call from the controller's notification path.
func (c *Coordinator) OnItemChanged(item models.MediaItem) {
	c.mu.Lock()
	c.current = item
	c.hasCurrent = true
	c.mu.Unlock()
	c.request(item)
}

// Regenerate re-issues the request for the current item unconditionally,
// even if one is already loading; the newer result wins under the
// item-identity staleness guard.
func (c *Coordinator) Regenerate() {
	c.mu.Lock()
	item := c.current
	ok := c.hasCurrent
	c.mu.Unlock()
	if !ok {
		return
	}
	c.request(item)
}

// request starts an asynchronous caption generation for item. Only cheap
// state capture happens on the caller's goroutine: OnItemChanged runs on
// the controller's notification path, and the credential read may refresh
// over the network. Requests are not cancelled when the item changes;
// stale completions are discarded instead.
func (c *Coordinator) request(item models.MediaItem) {
	c.mu.Lock()
	if !c.enabled {
		c.record = models.CaptionRecord{
			ItemID: item.ID,
			State:  models.CaptionStateUnavailable,
		}
		c.mu.Unlock()
		return
	}
	instruction := c.instruction
	c.record = models.CaptionRecord{
		ItemID: item.ID,
		State:  models.CaptionStateLoading,
	}
	c.mu.Unlock()

	go func() {
		// The credential is read here, never cached.
		credential, ok := c.tokens.GetValidAccessToken(context.Background())
		if !ok {
			// Not an error: nothing was attempted.
			c.applyUnavailable(item.ID)
			return
		}
		text, err := c.generator.Generate(context.Background(), instruction, item, credential)
		c.apply(item.ID, text, err)
	}()
}

// applyUnavailable marks the record unavailable, unless the item is no
// longer current.
func (c *Coordinator) applyUnavailable(requestItemID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasCurrent || c.current.ID != requestItemID {
		return
	}
	c.record = models.CaptionRecord{
		ItemID: requestItemID,
		State:  models.CaptionStateUnavailable,
	}
}

// apply installs a completed result, unless the item it was generated for
// is no longer current. The comparison is by item identity captured at
// issuance, not by request ordering.
func (c *Coordinator) apply(requestItemID, text string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasCurrent || c.current.ID != requestItemID {
		log.Printf("[caption] discarding stale result for item %s", requestItemID)
		return
	}

	if err != nil {
		c.record = models.CaptionRecord{
			ItemID: requestItemID,
			State:  models.CaptionStateError,
			Error:  err.Error(),
		}
		return
	}
	c.record = models.CaptionRecord{
		ItemID: requestItemID,
		State:  models.CaptionStateReady,
		Text:   text,
	}
}
