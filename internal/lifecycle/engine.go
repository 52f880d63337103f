// Package lifecycle is the sole mutator of email accounts and the sole writer of the
// ownership ledger. Every operation runs as one store transaction, so the single
// principal, ownership exclusivity and reassignment invariants hold after each call.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/mailroster/internal/catalog"
	"github.com/wolfeidau/mailroster/internal/models"
	"github.com/wolfeidau/mailroster/internal/secrets"
	"github.com/wolfeidau/mailroster/internal/store"
	"github.com/wolfeidau/mailroster/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Engine enforces the account state machine and orchestrates reassignment.
type Engine struct {
	tx      store.Transactor
	users   store.UserDirectory
	catalog catalog.Resolver
	sealer  secrets.Sealer
	clock   *clock
	metrics *telemetry.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithSealer sets how credential secrets are sealed before storage.
// The default stores them as given.
func WithSealer(s secrets.Sealer) Option {
	return func(e *Engine) { e.sealer = s }
}

// WithClock replaces the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.clock.now = now }
}

// NewEngine creates a lifecycle engine over the given stores and catalog.
func NewEngine(tx store.Transactor, users store.UserDirectory, resolver catalog.Resolver, opts ...Option) *Engine {
	e := &Engine{
		tx:      tx,
		users:   users,
		catalog: resolver,
		sealer:  secrets.Plaintext{},
		clock:   &clock{now: time.Now},
		metrics: telemetry.GetMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Actor is the person performing an operation, as recorded in the ledger.
type Actor struct {
	ID   uuid.UUID
	Name string
}

type actorContextKey struct{}

// ContextWithActor attaches the authenticated actor to ctx.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the actor attached to ctx, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// actorFor returns the authenticated actor, falling back to the acting user.
func (e *Engine) actorFor(ctx context.Context, actingUserID uuid.UUID) Actor {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor
	}
	actor := Actor{ID: actingUserID}
	if u, err := e.users.Get(ctx, actingUserID); err == nil {
		actor.Name = u.Name
	}
	return actor
}

// clock hands out strictly increasing timestamps at microsecond precision, which is
// what the postgres store keeps.
type clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

// unitOfWork carries one transaction's repository and the events it will append.
// Events are appended together when the operation's function returns without error.
type unitOfWork struct {
	accounts store.AccountStore
	ledger   store.Ledger
	clock    *clock
	events   []*models.OwnershipEvent
}

func (w *unitOfWork) record(event *models.OwnershipEvent) *models.OwnershipEvent {
	event.EventID = uuid.Must(uuid.NewV7())
	event.Timestamp = w.clock.Now()
	w.events = append(w.events, event)
	return event
}

// run executes fn in a transaction, appends the recorded events and reports metrics.
func (e *Engine) run(ctx context.Context, op string, fn func(ctx context.Context, w *unitOfWork) error) error {
	started := time.Now()

	var appended int
	err := e.tx.WithinTx(ctx, func(ctx context.Context, repo store.Repository) error {
		w := &unitOfWork{
			accounts: repo.Accounts(),
			ledger:   repo.Ledger(),
			clock:    e.clock,
		}
		if err := fn(ctx, w); err != nil {
			return err
		}
		if len(w.events) == 0 {
			return nil
		}
		if err := w.ledger.Append(ctx, w.events...); err != nil {
			return fmt.Errorf("failed to append ledger events: %w", err)
		}
		appended = len(w.events)
		return nil
	})
	err = translateStoreError(err)

	outcome := "ok"
	if err != nil {
		outcome = string(ClassOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	)
	e.metrics.OperationsTotal.Add(ctx, 1, attrs)
	e.metrics.OperationDuration.Record(ctx, float64(time.Since(started).Milliseconds()), attrs)
	if appended > 0 {
		e.metrics.EventsAppendedTotal.Add(ctx, int64(appended), metric.WithAttributes(attribute.String("op", op)))
	}
	if errors.Is(err, ErrConcurrentModification) {
		e.metrics.ConflictsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	}

	if err != nil {
		evt := log.Warn()
		if ClassOf(err) == "" {
			evt = log.Error()
		}
		evt.Err(err).Str("op", op).Dur("duration", time.Since(started)).Msg("Lifecycle operation failed")
		return err
	}

	return nil
}

// translateStoreError maps store sentinels onto lifecycle errors; lifecycle errors pass through.
func translateStoreError(err error) error {
	if err == nil {
		return nil
	}

	var lerr *Error
	switch {
	case errors.As(err, &lerr):
		return err
	case errors.Is(err, store.ErrConflict):
		return wrapError(ErrConcurrentModification, err, "another change to the same account or owner won; reload and retry")
	case errors.Is(err, store.ErrAccountNotFound):
		return wrapError(ErrAccountNotFound, err, "account does not exist")
	case errors.Is(err, store.ErrUserNotFound):
		return wrapError(ErrUserNotFound, err, "user does not exist")
	}
	return err
}

// checkOwner verifies that userID is a known user of companyID, so every stored account
// carries its owner's company.
func (e *Engine) checkOwner(ctx context.Context, userID, companyID uuid.UUID) error {
	user, err := e.users.Get(ctx, userID)
	if errors.Is(err, store.ErrUserNotFound) {
		return wrapError(ErrUserNotFound, err, "user %s does not exist", userID)
	}
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	if user.CompanyID != companyID {
		return newError(ErrCompanyMismatch, "user %s does not belong to company %s", userID, companyID)
	}
	return nil
}

// lockOwned loads an account, locks its owner and then the account row, in that order,
// and checks that actingUserID still owns it.
func (w *unitOfWork) lockOwned(ctx context.Context, accountID, actingUserID uuid.UUID, extraOwners ...uuid.UUID) (*models.EmailAccount, error) {
	peek, err := w.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if peek.UserID != actingUserID {
		return nil, newError(ErrAccountNotEditable, "account %s is not currently owned by %s", accountID, actingUserID)
	}

	if err := w.accounts.LockOwners(ctx, append([]uuid.UUID{peek.UserID}, extraOwners...)...); err != nil {
		return nil, err
	}

	account, err := w.accounts.GetForUpdate(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != peek.UserID {
		return nil, newError(ErrConcurrentModification, "account %s changed owner while being locked", accountID)
	}
	return account, nil
}

// demotePrincipal clears the principal flag on ownerID's current principal, if it is not
// keep, and records the unmarked_principal event. The demotion is written immediately so
// the caller can then write its own principal.
func (e *Engine) demotePrincipal(ctx context.Context, w *unitOfWork, ownerID, keep uuid.UUID, actor Actor, reason, provenance string) (bool, error) {
	current, err := w.accounts.GetPrincipal(ctx, ownerID)
	switch {
	case errors.Is(err, store.ErrAccountNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to load current principal: %w", err)
	case current.AccountID == keep:
		return false, nil
	}

	current.IsPrincipal = false
	current.UpdatedAt = w.clock.Now()
	if err := w.accounts.Update(ctx, current); err != nil {
		return false, fmt.Errorf("failed to demote principal %s: %w", current.AccountID, err)
	}
	w.record(&models.OwnershipEvent{
		AccountID:  current.AccountID,
		Kind:       models.EventUnmarkedPrincipal,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		OwnerID:    current.UserID,
		Reason:     reason,
		Provenance: provenance,
	})
	e.metrics.PrincipalSwapsTotal.Add(ctx, 1)
	return true, nil
}

func (w *unitOfWork) recordPrincipalChange(account *models.EmailAccount, kind models.EventKind, actor Actor, reason, provenance string) {
	w.record(&models.OwnershipEvent{
		AccountID:  account.AccountID,
		Kind:       kind,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		OwnerID:    account.UserID,
		Reason:     reason,
		Provenance: provenance,
	})
}

// checkAddressFree fails if owner already holds a live record with the same address.
// Placeholders left behind by reassignment do not count.
func checkAddressFree(ctx context.Context, w *unitOfWork, ownerID uuid.UUID, address string, except uuid.UUID) error {
	owned, err := w.accounts.ListByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to list owned accounts: %w", err)
	}

	normalized := models.NormalizeAddress(address)
	for _, a := range owned {
		if a.AccountID == except || a.IsPlaceholder() {
			continue
		}
		if models.NormalizeAddress(a.Address) == normalized {
			return newError(ErrDuplicateAddressForUser, "%s already owns %s (account %s)", ownerID, address, a.AccountID)
		}
	}
	return nil
}
