package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/mailroster/internal/models"
)

const eventColumns = `
	seq, event_id, account_id, kind, occurred_at,
	actor_id, actor_name, owner_id,
	reason, notes, provenance, correlation_id,
	destination_user_id, destination_user_name,
	origin_user_id, origin_user_name, was_principal, changes`

// ledger implements store.Ledger on the ownership_events table.
// The table rejects UPDATE and DELETE with a trigger.
type ledger struct {
	q querier
}

// Append inserts events in order; seq comes from the table's sequence.
func (l *ledger) Append(ctx context.Context, events ...*models.OwnershipEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		changes := e.Changes
		if changes == nil {
			changes = []models.FieldChange{}
		}
		batch.Queue(`
			INSERT INTO ownership_events (
				event_id, account_id, kind, occurred_at,
				actor_id, actor_name, owner_id,
				reason, notes, provenance, correlation_id,
				destination_user_id, destination_user_name,
				origin_user_id, origin_user_name, was_principal, changes
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			RETURNING seq`,
			e.EventID,
			e.AccountID,
			string(e.Kind),
			e.Timestamp,
			e.ActorID,
			e.ActorName,
			e.OwnerID,
			e.Reason,
			e.Notes,
			e.Provenance,
			e.CorrelationID,
			e.DestinationUserID,
			e.DestinationUserName,
			e.OriginUserID,
			e.OriginUserName,
			e.WasPrincipal,
			changes,
		)
	}

	results := l.q.SendBatch(ctx, batch)
	defer results.Close()

	for _, e := range events {
		if err := results.QueryRow().Scan(&e.Seq); err != nil {
			return fmt.Errorf("failed to append event: %w", mapPostgresError(err))
		}
		log.Debug().
			Int64("seq", e.Seq).
			Str("account_id", e.AccountID.String()).
			Str("kind", string(e.Kind)).
			Msg("Appended ownership event")
	}
	return nil
}

// History returns the events of an account in append order.
func (l *ledger) History(ctx context.Context, accountID uuid.UUID) ([]*models.OwnershipEvent, error) {
	rows, err := l.q.Query(ctx, `SELECT `+eventColumns+`
		FROM ownership_events
		WHERE account_id = $1
		ORDER BY seq`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", mapPostgresError(err))
	}
	defer rows.Close()

	events := []*models.OwnershipEvent{}
	for rows.Next() {
		var (
			e    models.OwnershipEvent
			kind string
		)
		err := rows.Scan(
			&e.Seq,
			&e.EventID,
			&e.AccountID,
			&kind,
			&e.Timestamp,
			&e.ActorID,
			&e.ActorName,
			&e.OwnerID,
			&e.Reason,
			&e.Notes,
			&e.Provenance,
			&e.CorrelationID,
			&e.DestinationUserID,
			&e.DestinationUserName,
			&e.OriginUserID,
			&e.OriginUserName,
			&e.WasPrincipal,
			&e.Changes,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Kind = models.EventKind(kind)
		e.Timestamp = e.Timestamp.UTC()
		if len(e.Changes) == 0 {
			e.Changes = nil
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", mapPostgresError(err))
	}
	return events, nil
}

// HasHistory reports whether any event exists for an account.
func (l *ledger) HasHistory(ctx context.Context, accountID uuid.UUID) (bool, error) {
	var exists bool
	err := l.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM ownership_events WHERE account_id = $1)`, accountID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check history: %w", mapPostgresError(err))
	}
	return exists, nil
}

// ReassignedFrom returns accounts userID reassigned away, ordered by first reassignment.
func (l *ledger) ReassignedFrom(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := l.q.Query(ctx, `
		SELECT account_id
		FROM ownership_events
		WHERE kind = 'reassignment_out' AND owner_id = $1
		GROUP BY account_id
		ORDER BY MIN(seq)`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reassigned accounts: %w", mapPostgresError(err))
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to collect reassigned accounts: %w", mapPostgresError(err))
	}
	return ids, nil
}
