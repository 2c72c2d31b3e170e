package subtitle

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"voicelink/internal/domain"
)

// ApplyResult reports what one batch changed.
type ApplyResult struct {
	CaptionUpdates  []domain.LiveCaption
	CaptionsCleared []string
	NewMessages     []domain.TranscriptMessage
}

// Reconciler folds subtitle batches, in arrival order, into one live
// caption per speaker and an append-only transcript. Arrival order is
// authoritative: sequence numbers are carried through but never used to
// reorder, so a late unit simply overwrites the speaker's caption.
type Reconciler struct {
	mu       sync.Mutex
	version  uint64
	captions map[string]domain.LiveCaption
	messages []domain.TranscriptMessage

	newID func() string
	now   func() time.Time
}

// NewReconciler creates an empty reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{
		captions: make(map[string]domain.LiveCaption),
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Apply folds one decoded batch, unit by unit in array order.
func (r *Reconciler) Apply(batch domain.SubtitleBatch) ApplyResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result ApplyResult
	for _, unit := range batch.Data {
		if unit.UserID == "" {
			continue
		}

		caption := domain.LiveCaption{
			UserID:    unit.UserID,
			Text:      unit.Text,
			Sequence:  unit.Sequence,
			UpdatedAt: r.now(),
		}
		r.captions[unit.UserID] = caption
		result.CaptionUpdates = append(result.CaptionUpdates, caption)

		if !unit.CompleteSentence() {
			continue
		}

		src := unit
		msg := domain.TranscriptMessage{
			ID:        r.newID(),
			Role:      RoleForUser(unit.UserID),
			Content:   unit.Text,
			Timestamp: r.now(),
			Source:    &src,
		}
		r.messages = append(r.messages, msg)
		result.NewMessages = append(result.NewMessages, msg)

		delete(r.captions, unit.UserID)
		result.CaptionsCleared = append(result.CaptionsCleared, unit.UserID)
	}

	if len(result.CaptionUpdates) > 0 || len(result.NewMessages) > 0 {
		r.version++
	}
	return result
}

// Messages returns a copy of the finalized transcript in emit order.
func (r *Reconciler) Messages() []domain.TranscriptMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.TranscriptMessage, len(r.messages))
	copy(out, r.messages)
	return out
}

// LiveCaptions returns a copy of the unresolved captions keyed by speaker.
func (r *Reconciler) LiveCaptions() map[string]domain.LiveCaption {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]domain.LiveCaption, len(r.captions))
	for id, caption := range r.captions {
		out[id] = caption
	}
	return out
}

// Version returns the aggregate version, bumped on every effective Apply.
func (r *Reconciler) Version() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// Reset clears the transcript and all live captions.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captions = make(map[string]domain.LiveCaption)
	r.messages = nil
	r.version++
}
