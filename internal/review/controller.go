// Package review implements the approval state machine: every draft the
// dispatcher produces waits here for the reviewer's approve, edit, or
// reject before anything reaches a conversation.
package review

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/magidandrew/tg-persona/internal/metrics"
	"github.com/magidandrew/tg-persona/internal/models"
	"github.com/magidandrew/tg-persona/internal/store"
	"github.com/magidandrew/tg-persona/internal/transport"
)

// actionRe matches the three reviewer action tokens: "approve <id>",
// "edit <id>", "reject <id>". The id may be a short prefix.
var actionRe = regexp.MustCompile(`(?i)^(approve|edit|reject)\s+([0-9a-f-]+)$`)

// minRefLen is the shortest accepted draft id prefix.
const minRefLen = 6

// Controller owns the lifecycle of in-flight drafts. All mutations go
// through it, so a store write and the state transition that caused it
// are one logical step.
type Controller struct {
	mu     sync.Mutex
	drafts map[string]*models.Draft

	// editingID is the draft currently awaiting an edit submission. The
	// "one-shot capture" of the edit sub-flow is exactly this field:
	// submissions apply while it is set, and it clears the moment one
	// lands, so it can never fire for unrelated future messages.
	editingID string

	store      store.ApprovalStore
	transport  transport.Transport
	reviewerID string
	channelID  string
	editPrefix string
	logger     zerolog.Logger
}

// NewController creates a controller. Call Load before routing input so
// drafts from a previous process instance are live again.
func NewController(s store.ApprovalStore, t transport.Transport, reviewerID, channelID, editPrefix string, logger zerolog.Logger) *Controller {
	return &Controller{
		drafts:     make(map[string]*models.Draft),
		store:      s,
		transport:  t,
		reviewerID: reviewerID,
		channelID:  channelID,
		editPrefix: editPrefix,
		logger:     logger.With().Str("component", "review").Logger(),
	}
}

// Load reloads all stored drafts. A draft persisted mid-edit comes back
// as pending: the capture did not survive the restart, so the reviewer
// starts that edit over.
func (c *Controller) Load(ctx context.Context) error {
	drafts, err := c.store.GetDrafts(ctx)
	if err != nil {
		return fmt.Errorf("review: load drafts: %w", err)
	}

	for _, d := range drafts {
		if d.State == models.DraftEditing {
			d.State = models.DraftPending
			if err := c.store.PutDraft(ctx, d); err != nil {
				c.logger.Error().Err(err).Str("draft", d.ID).Msg("failed to reset editing draft")
			}
		}
	}

	c.mu.Lock()
	c.drafts = drafts
	c.editingID = ""
	c.mu.Unlock()

	c.logger.Info().Int("count", len(drafts)).Msg("drafts reloaded")
	return nil
}

// Submit persists a new draft and surfaces it to the reviewer.
// Implements the dispatcher's DraftSink.
func (c *Controller) Submit(ctx context.Context, draft *models.Draft) error {
	c.mu.Lock()
	if err := c.store.PutDraft(ctx, draft); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("review: persist draft: %w", err)
	}
	c.drafts[draft.ID] = draft
	note := c.formatDraft(draft)
	c.mu.Unlock()

	c.notify(ctx, note)
	return nil
}

// HandleInput routes one message from the review channel: an action
// token, an edit submission, or neither (ignored). A would-be
// submission missing the marker prefix falls through to "neither" and
// the draft stays in editing, awaiting a well-formed one.
func (c *Controller) HandleInput(ctx context.Context, actorID, text string) {
	text = strings.TrimSpace(text)

	if m := actionRe.FindStringSubmatch(text); m != nil {
		c.handleAction(ctx, actorID, strings.ToLower(m[1]), strings.ToLower(m[2]))
		return
	}

	if strings.HasPrefix(strings.ToLower(text), strings.ToLower(c.editPrefix)) {
		// The submission channel is scoped to the reviewer's identity.
		if actorID != c.reviewerID {
			return
		}
		c.handleSubmission(ctx, strings.TrimSpace(text[len(c.editPrefix):]))
		return
	}
}

func (c *Controller) handleAction(ctx context.Context, actorID, action, ref string) {
	if actorID != c.reviewerID {
		metrics.UnauthorizedActions.Inc()
		c.logger.Warn().Str("actor", actorID).Str("action", action).Msg("unauthorized draft action")
		c.notify(ctx, "Only the configured reviewer can act on drafts.")
		return
	}

	c.mu.Lock()
	d := c.resolveLocked(ref)
	if d == nil {
		c.mu.Unlock()
		c.notify(ctx, fmt.Sprintf("Draft %s is no longer available.", ref))
		return
	}

	var note string
	switch action {
	case "approve":
		note = c.approveLocked(ctx, d)
	case "reject":
		note = c.rejectLocked(ctx, d)
	case "edit":
		note = c.editLocked(ctx, d)
	}
	c.mu.Unlock()

	if note != "" {
		c.notify(ctx, note)
	}
}

// approveLocked delivers the draft's current response into its owning
// conversation, then removes it from the store. Delivery failure keeps
// the draft pending; a delete failure after delivery is an operator
// error but the draft still leaves memory so it can never double-send.
func (c *Controller) approveLocked(ctx context.Context, d *models.Draft) string {
	if d.State != models.DraftPending {
		return fmt.Sprintf("Draft %s is being edited; submit the edit first.", shortID(d.ID))
	}

	if err := c.transport.SendMessage(ctx, d.ConversationID, d.Response); err != nil {
		c.logger.Error().Err(err).Str("draft", d.ID).Msg("delivery failed")
		return fmt.Sprintf("Delivery failed for draft %s; it is still pending.", shortID(d.ID))
	}

	if err := c.store.DeleteDraft(ctx, d.ID); err != nil {
		c.logger.Error().Err(err).Str("draft", d.ID).Msg("store delete failed after delivery")
	}
	delete(c.drafts, d.ID)

	metrics.DraftActions.WithLabelValues("approve").Inc()
	c.logger.Info().Str("draft", d.ID).Str("conversation", d.ConversationID).Msg("draft approved and sent")
	return fmt.Sprintf("Approved and sent draft %s.", shortID(d.ID))
}

func (c *Controller) rejectLocked(ctx context.Context, d *models.Draft) string {
	if d.State != models.DraftPending {
		return fmt.Sprintf("Draft %s is being edited; submit the edit first.", shortID(d.ID))
	}

	if err := c.store.DeleteDraft(ctx, d.ID); err != nil {
		c.logger.Error().Err(err).Str("draft", d.ID).Msg("store delete failed")
	}
	delete(c.drafts, d.ID)

	metrics.DraftActions.WithLabelValues("reject").Inc()
	c.logger.Info().Str("draft", d.ID).Msg("draft rejected")
	return fmt.Sprintf("Rejected draft %s.", shortID(d.ID))
}

func (c *Controller) editLocked(ctx context.Context, d *models.Draft) string {
	if c.editingID != "" && c.editingID != d.ID {
		return fmt.Sprintf("Draft %s is already being edited; finish that first.", shortID(c.editingID))
	}
	if d.State == models.DraftEditing {
		// Already editing this draft: re-present the current text.
		return c.formatEditPrompt(d)
	}

	d.State = models.DraftEditing
	c.editingID = d.ID
	if err := c.store.PutDraft(ctx, d); err != nil {
		c.logger.Error().Err(err).Str("draft", d.ID).Msg("failed to persist editing state")
	}

	metrics.DraftActions.WithLabelValues("edit").Inc()
	return c.formatEditPrompt(d)
}

// handleSubmission completes an editing round trip: replace the response
// text, return to pending, retire the capture. A submission with no
// draft in editing, or with empty replacement text, is ignored.
func (c *Controller) handleSubmission(ctx context.Context, newText string) {
	c.mu.Lock()

	if c.editingID == "" || newText == "" {
		c.mu.Unlock()
		return
	}

	d := c.drafts[c.editingID]
	if d == nil {
		c.editingID = ""
		c.mu.Unlock()
		return
	}

	d.Response = newText
	d.State = models.DraftPending
	c.editingID = ""
	if err := c.store.PutDraft(ctx, d); err != nil {
		c.logger.Error().Err(err).Str("draft", d.ID).Msg("failed to persist edited draft")
	}
	note := c.formatDraft(d)
	c.mu.Unlock()

	metrics.DraftActions.WithLabelValues("submit").Inc()
	c.logger.Info().Str("draft", d.ID).Msg("draft edited")
	c.notify(ctx, note)
}

// resolveLocked finds a draft by full id or a unique prefix.
func (c *Controller) resolveLocked(ref string) *models.Draft {
	if d, ok := c.drafts[ref]; ok {
		return d
	}
	if len(ref) < minRefLen {
		return nil
	}
	var found *models.Draft
	for id, d := range c.drafts {
		if strings.HasPrefix(id, ref) {
			if found != nil {
				return nil // ambiguous
			}
			found = d
		}
	}
	return found
}

// Summary counts live drafts by urgency. Memory is authoritative: this
// process is the store's single owner.
func (c *Controller) Summary() models.DigestSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	var sum models.DigestSummary
	for _, d := range c.drafts {
		switch d.Urgency {
		case models.UrgencyHigh:
			sum.High++
		case models.UrgencyMedium:
			sum.Medium++
		default:
			sum.Low++
		}
	}
	return sum
}

// Snapshot returns a copy of all live drafts for the ops endpoint.
func (c *Controller) Snapshot() []models.Draft {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Draft, 0, len(c.drafts))
	for _, d := range c.drafts {
		out = append(out, *d)
	}
	return out
}

func (c *Controller) formatDraft(d *models.Draft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Draft %s for conversation %s (%s urgency, %d%% confidence)\n",
		shortID(d.ID), d.ConversationID, d.Urgency, d.Confidence)
	b.WriteString("\nContext:\n")
	for _, entry := range d.Context {
		fmt.Fprintf(&b, "  %s: %s\n", entry.SenderName, entry.Text)
	}
	b.WriteString("\nProposed reply:\n")
	b.WriteString(d.Response)
	fmt.Fprintf(&b, "\n\nActions: approve %s | edit %s | reject %s", shortID(d.ID), shortID(d.ID), shortID(d.ID))
	return b.String()
}

func (c *Controller) formatEditPrompt(d *models.Draft) string {
	return fmt.Sprintf("Editing draft %s. Current reply:\n%s\n\nSend the replacement as %q followed by your text.",
		shortID(d.ID), d.Response, c.editPrefix)
}

// notify sends to the review channel; failures are logged, never fatal.
func (c *Controller) notify(ctx context.Context, text string) {
	if err := c.transport.SendMessage(ctx, c.channelID, text); err != nil {
		c.logger.Error().Err(err).Msg("review notification failed")
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
