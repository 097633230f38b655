// This file implements the Stripe webhook handler.
//
// The handler is NOT behind auth middleware; it is called directly by Stripe.
// Security is provided by verifying the Stripe-Signature header using the
// webhook signing secret (HMAC-SHA256 with timestamp tolerance).
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v82"

	"mealweek/internal/core"
	"mealweek/internal/external"
	"mealweek/internal/types"
)

// maxWebhookBodySize is the maximum allowed size of a Stripe webhook payload (64 KB).
// Stripe webhook payloads are typically small; this limit protects against abuse.
const maxWebhookBodySize = 64 * 1024

// SubscriptionEventApplier is the subset of the subscription repository the
// webhook handler needs to synchronize local billing state.
type SubscriptionEventApplier interface {
	// UpdateFromEvent applies a subscription lifecycle event under optimistic
	// locking: stale or duplicate deliveries are idempotent no-ops.
	UpdateFromEvent(
		ctx context.Context,
		userID string,
		tier types.Tier,
		status types.SubscriptionStatus,
		currentPeriodEnd *time.Time,
		eventTimestamp time.Time,
	) error

	// SetStripeCustomerID links the processor's customer handle to a user.
	SetStripeCustomerID(ctx context.Context, userID, customerID string) error

	// FindByStripeCustomerID resolves a customer handle back to a user ID.
	FindByStripeCustomerID(ctx context.Context, customerID string) (string, error)
}

// StripeWebhookHandler handles asynchronous billing events from Stripe.
type StripeWebhookHandler struct {
	verifier external.StripeEventVerifier
	subs     SubscriptionEventApplier
	secret   types.SecretString
	logger   *slog.Logger
}

// NewStripeWebhookHandler creates a new StripeWebhookHandler with the
// provided dependencies.
func NewStripeWebhookHandler(
	verifier external.StripeEventVerifier,
	subs SubscriptionEventApplier,
	secret types.SecretString,
	logger *slog.Logger,
) *StripeWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeWebhookHandler{
		verifier: verifier,
		subs:     subs,
		secret:   secret,
		logger:   logger,
	}
}

// RegisterRoutes mounts the Stripe webhook endpoint. The route group is
// mounted outside /v1 and outside bearer authentication.
func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/stripe", h.Handle)
}

// Handle processes incoming Stripe webhook events.
//
//  1. Reads the body and the "Stripe-Signature" header.
//  2. Verifies the signature using the webhook signing secret.
//  3. Routes to the appropriate handler based on event type.
//  4. Returns 200 OK, including when internal processing fails: Stripe
//     would otherwise retry indefinitely, and the failure is already logged
//     for investigation.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body",
			slog.String("error", err.Error()),
		)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"failed to read request body",
			err,
		))
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		h.logger.WarnContext(r.Context(), "missing Stripe-Signature header")
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"missing Stripe-Signature header",
			nil,
		))
		return
	}

	event, err := h.verifier.ConstructEvent(payload, sigHeader, h.secret.Unmask())
	if err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed",
			slog.String("error", err.Error()),
		)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenInvalid,
			"webhook signature verification failed",
			err,
		))
		return
	}

	h.logger.InfoContext(r.Context(), "processing stripe webhook event",
		slog.String("event_id", event.ID),
		slog.String("event_type", string(event.Type)),
	)

	if err := h.routeEvent(r.Context(), &event); err != nil {
		h.logger.ErrorContext(r.Context(), "webhook event processing failed",
			slog.String("event_id", event.ID),
			slog.String("event_type", string(event.Type)),
			slog.String("error", err.Error()),
		)
	}

	w.WriteHeader(http.StatusOK)
}

// routeEvent dispatches the webhook event to the appropriate handler method
// based on the event type. Unhandled types are acknowledged and ignored.
func (h *StripeWebhookHandler) routeEvent(ctx context.Context, event *stripe.Event) error {
	switch string(event.Type) {
	case external.EventStripeCheckoutCompleted:
		return h.handleCheckoutCompleted(ctx, event)

	case external.EventStripeSubCreated, external.EventStripeSubUpdated:
		return h.handleSubscriptionChanged(ctx, event)

	case external.EventStripeSubDeleted:
		return h.handleSubscriptionDeleted(ctx, event)

	default:
		h.logger.InfoContext(ctx, "ignoring unhandled webhook event type",
			slog.String("event_type", string(event.Type)),
		)
		return nil
	}
}

// handleCheckoutCompleted links the Stripe customer to the user who just
// completed checkout. The subscription state itself arrives via the
// subsequent customer.subscription.created event.
func (h *StripeWebhookHandler) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	var session stripeCheckoutSessionObj
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("parsing checkout session from event %s: %w", event.ID, err)
	}

	userID := session.ClientReferenceID
	if userID == "" {
		userID = session.Metadata["user_id"]
	}
	if userID == "" {
		return fmt.Errorf("checkout.session.completed: missing user reference in event %s", event.ID)
	}
	if session.Customer == "" {
		return fmt.Errorf("checkout.session.completed: missing customer in event %s", event.ID)
	}

	h.logger.InfoContext(ctx, "linking stripe customer",
		slog.String("event_id", event.ID),
		slog.String("user_id", userID),
	)

	return h.subs.SetStripeCustomerID(ctx, userID, session.Customer)
}

// handleSubscriptionChanged processes customer.subscription.created and
// customer.subscription.updated events, covering upgrades, downgrades,
// renewals and dunning transitions.
func (h *StripeWebhookHandler) handleSubscriptionChanged(ctx context.Context, event *stripe.Event) error {
	sub, userID, err := h.parseSubscriptionEvent(ctx, event)
	if err != nil {
		return err
	}

	tier := sub.tier()
	status := mapStripeSubStatus(sub.Status)
	periodEnd := sub.periodEnd()
	eventTime := time.Unix(event.Created, 0).UTC()

	h.logger.InfoContext(ctx, "applying subscription change",
		slog.String("event_id", event.ID),
		slog.String("user_id", userID),
		slog.String("tier", string(tier)),
		slog.String("status", string(status)),
	)

	return h.subs.UpdateFromEvent(ctx, userID, tier, status, periodEnd, eventTime)
}

// handleSubscriptionDeleted processes customer.subscription.deleted events.
// The user reverts to the basic tier with a canceled status.
func (h *StripeWebhookHandler) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event) error {
	_, userID, err := h.parseSubscriptionEvent(ctx, event)
	if err != nil {
		return err
	}

	eventTime := time.Unix(event.Created, 0).UTC()

	h.logger.InfoContext(ctx, "applying subscription deletion",
		slog.String("event_id", event.ID),
		slog.String("user_id", userID),
	)

	return h.subs.UpdateFromEvent(ctx, userID, types.TierBasic, types.StatusCanceled, nil, eventTime)
}

// parseSubscriptionEvent decodes the subscription object from the event and
// resolves the affected user, preferring the subscription's user_id metadata
// and falling back to the stored customer link.
func (h *StripeWebhookHandler) parseSubscriptionEvent(ctx context.Context, event *stripe.Event) (*stripeSubscriptionObj, string, error) {
	var sub stripeSubscriptionObj
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, "", fmt.Errorf("parsing subscription from event %s: %w", event.ID, err)
	}

	if userID := sub.Metadata["user_id"]; userID != "" {
		return &sub, userID, nil
	}

	if sub.Customer == "" {
		return nil, "", fmt.Errorf("subscription event %s carries neither user_id metadata nor customer", event.ID)
	}

	userID, err := h.subs.FindByStripeCustomerID(ctx, sub.Customer)
	if err != nil {
		return nil, "", fmt.Errorf("resolving customer %s from event %s: %w", sub.Customer, event.ID, err)
	}

	return &sub, userID, nil
}

// ---------------------------------------------------------------------------
// Stripe Event Parsing
// ---------------------------------------------------------------------------

// stripeCheckoutSessionObj represents the minimal fields from a Stripe
// checkout.session.completed event's data object. We avoid decoding into the
// full stripe types to keep the handler decoupled from library versioning
// and to make testing straightforward.
type stripeCheckoutSessionObj struct {
	ClientReferenceID string            `json:"client_reference_id"`
	Customer          string            `json:"customer"`
	Metadata          map[string]string `json:"metadata"`
}

// stripeSubscriptionObj represents the minimal fields from a Stripe
// customer.subscription.* event's data object.
type stripeSubscriptionObj struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	Customer         string            `json:"customer"`
	Metadata         map[string]string `json:"metadata"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	Items            stripeSubItems    `json:"items"`
}

type stripeSubItems struct {
	Data []stripeSubItem `json:"data"`
}

type stripeSubItem struct {
	Price stripeSubPrice `json:"price"`
}

type stripeSubPrice struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

// tier extracts the subscription tier, preferring the subscription's own
// metadata and falling back to the first item's price metadata. Unknown or
// absent tiers resolve to basic.
func (s *stripeSubscriptionObj) tier() types.Tier {
	raw := s.Metadata["tier"]
	if raw == "" && len(s.Items.Data) > 0 {
		raw = s.Items.Data[0].Price.Metadata["tier"]
	}
	switch types.Tier(raw) {
	case types.TierPlus:
		return types.TierPlus
	default:
		return types.TierBasic
	}
}

// periodEnd returns the current period end as a *time.Time, or nil when the
// subscription object does not carry one.
func (s *stripeSubscriptionObj) periodEnd() *time.Time {
	if s.CurrentPeriodEnd == 0 {
		return nil
	}
	t := time.Unix(s.CurrentPeriodEnd, 0).UTC()
	return &t
}

// mapStripeSubStatus translates Stripe's subscription status vocabulary to
// the local one. Terminal payment failures collapse to canceled; transient
// in-between states collapse to inactive, which fails closed.
func mapStripeSubStatus(status string) types.SubscriptionStatus {
	switch status {
	case "trialing":
		return types.StatusTrialing
	case "active":
		return types.StatusActive
	case "past_due":
		return types.StatusPastDue
	case "canceled", "unpaid", "incomplete_expired":
		return types.StatusCanceled
	default:
		return types.StatusInactive
	}
}
