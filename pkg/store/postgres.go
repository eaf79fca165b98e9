package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskmesh/taskmesh/pkg/models"
)

// PostgresStore persists documents in a single partitioned jsonb table.
// All writes are single-row upserts, no multi-document transactions.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing connection pool. Migrations are the
// caller's responsibility (see pkg/database).
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// classify maps a pgx error to the store failure taxonomy. Unique
// violations become ErrConflict; other server-reported errors are
// permanent; everything else (network, pool, context) is transport.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return &TransportError{Op: op, Err: err}
}

func (p *PostgresStore) insert(ctx context.Context, id, sessionID, userID string, dataType models.DataType, entity any, setTS func(time.Time)) error {
	payload, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", dataType, err)
	}
	return withRetry(ctx, func() error {
		var ts time.Time
		row := p.pool.QueryRow(ctx,
			`INSERT INTO documents (id, session_id, user_id, data_type, payload)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING ts`,
			id, sessionID, userID, string(dataType), payload)
		if err := row.Scan(&ts); err != nil {
			return classify("insert "+string(dataType), err)
		}
		setTS(ts.UTC())
		return nil
	})
}

func (p *PostgresStore) replace(ctx context.Context, id, sessionID, userID string, dataType models.DataType, entity any, setTS func(time.Time)) error {
	payload, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", dataType, err)
	}
	return withRetry(ctx, func() error {
		var ts time.Time
		row := p.pool.QueryRow(ctx,
			`UPDATE documents
			 SET payload = $1,
			     ts = GREATEST(clock_timestamp(), ts + interval '1 microsecond')
			 WHERE session_id = $2 AND id = $3 AND user_id = $4 AND data_type = $5
			 RETURNING ts`,
			payload, sessionID, id, userID, string(dataType))
		if err := row.Scan(&ts); err != nil {
			return classify("update "+string(dataType), err)
		}
		setTS(ts.UTC())
		return nil
	})
}

// QueryDocuments implements the generic partitioned query.
func (p *PostgresStore) QueryDocuments(ctx context.Context, q Query) ([]*Document, error) {
	sql := `SELECT id, session_id, user_id, data_type, ts, payload
	        FROM documents
	        WHERE user_id = $1 AND data_type = $2`
	args := []any{q.UserID, string(q.DataType)}
	if q.SessionID != "" {
		args = append(args, q.SessionID)
		sql += fmt.Sprintf(" AND session_id = $%d", len(args))
	}
	if q.PlanID != "" {
		args = append(args, q.PlanID)
		sql += fmt.Sprintf(" AND payload->>'plan_id' = $%d", len(args))
	}
	if q.Newest {
		sql += " ORDER BY ts DESC"
	} else {
		sql += " ORDER BY ts ASC"
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var out []*Document
	err := withRetry(ctx, func() error {
		rows, err := p.pool.Query(ctx, sql, args...)
		if err != nil {
			return classify("query "+string(q.DataType), err)
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			doc := &Document{}
			var dt string
			if err := rows.Scan(&doc.ID, &doc.SessionID, &doc.UserID, &dt, &doc.Timestamp, &doc.Payload); err != nil {
				return classify("scan "+string(q.DataType), err)
			}
			doc.DataType = models.DataType(dt)
			doc.Timestamp = doc.Timestamp.UTC()
			out = append(out, doc)
		}
		if err := rows.Err(); err != nil {
			return classify("iterate "+string(q.DataType), err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ── Sessions ─────────────────────────────────────────────────

func (p *PostgresStore) AddSession(ctx context.Context, s *models.Session) error {
	return p.insert(ctx, s.ID, s.ID, s.UserID, models.DataTypeSession, s, func(ts time.Time) { s.Timestamp = ts })
}

func (p *PostgresStore) GetSession(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	return pgGetOne[models.Session](p, ctx, Query{UserID: userID, DataType: models.DataTypeSession, SessionID: sessionID})
}

func (p *PostgresStore) ListSessions(ctx context.Context, userID string) ([]*models.Session, error) {
	return pgList[models.Session](p, ctx, Query{UserID: userID, DataType: models.DataTypeSession})
}

// ── Plans ────────────────────────────────────────────────────

func (p *PostgresStore) AddPlan(ctx context.Context, plan *models.Plan) error {
	return p.insert(ctx, plan.ID, plan.SessionID, plan.UserID, models.DataTypePlan, plan, func(ts time.Time) { plan.Timestamp = ts })
}

func (p *PostgresStore) UpdatePlan(ctx context.Context, plan *models.Plan) error {
	return p.replace(ctx, plan.ID, plan.SessionID, plan.UserID, models.DataTypePlan, plan, func(ts time.Time) { plan.Timestamp = ts })
}

func (p *PostgresStore) GetPlan(ctx context.Context, userID, planID string) (*models.Plan, error) {
	var plan models.Plan
	err := withRetry(ctx, func() error {
		var payload json.RawMessage
		row := p.pool.QueryRow(ctx,
			`SELECT payload FROM documents
			 WHERE user_id = $1 AND data_type = $2 AND id = $3`,
			userID, string(models.DataTypePlan), planID)
		if err := row.Scan(&payload); err != nil {
			return classify("get plan", err)
		}
		return json.Unmarshal(payload, &plan)
	})
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (p *PostgresStore) GetPlanBySession(ctx context.Context, userID, sessionID string) (*models.Plan, error) {
	return pgGetOne[models.Plan](p, ctx, Query{UserID: userID, DataType: models.DataTypePlan, SessionID: sessionID, Newest: true})
}

// ListPlansBySession returns every plan created in the session, newest
// first, superseded plans included.
func (p *PostgresStore) ListPlansBySession(ctx context.Context, userID, sessionID string) ([]*models.Plan, error) {
	return pgList[models.Plan](p, ctx, Query{UserID: userID, DataType: models.DataTypePlan, SessionID: sessionID, Newest: true})
}

func (p *PostgresStore) ListPlans(ctx context.Context, userID string, limit int) ([]*models.Plan, error) {
	if limit <= 0 {
		limit = DefaultPlanListLimit
	}
	return pgList[models.Plan](p, ctx, Query{UserID: userID, DataType: models.DataTypePlan, Limit: limit, Newest: true})
}

// ── Steps ────────────────────────────────────────────────────

func (p *PostgresStore) AddStep(ctx context.Context, s *models.Step) error {
	return p.insert(ctx, s.ID, s.SessionID, s.UserID, models.DataTypeStep, s, func(ts time.Time) { s.Timestamp = ts })
}

func (p *PostgresStore) UpdateStep(ctx context.Context, s *models.Step) error {
	return p.replace(ctx, s.ID, s.SessionID, s.UserID, models.DataTypeStep, s, func(ts time.Time) { s.Timestamp = ts })
}

func (p *PostgresStore) GetStep(ctx context.Context, userID, sessionID, stepID string) (*models.Step, error) {
	var step models.Step
	err := withRetry(ctx, func() error {
		var payload json.RawMessage
		row := p.pool.QueryRow(ctx,
			`SELECT payload FROM documents
			 WHERE session_id = $1 AND id = $2 AND user_id = $3 AND data_type = $4`,
			sessionID, stepID, userID, string(models.DataTypeStep))
		if err := row.Scan(&payload); err != nil {
			return classify("get step", err)
		}
		return json.Unmarshal(payload, &step)
	})
	if err != nil {
		return nil, err
	}
	return &step, nil
}

func (p *PostgresStore) ListStepsByPlan(ctx context.Context, userID, planID string) ([]*models.Step, error) {
	steps, err := pgList[models.Step](p, ctx, Query{UserID: userID, DataType: models.DataTypeStep, PlanID: planID})
	if err != nil {
		return nil, err
	}
	// Creation order is the plan order; ordinal is authoritative even if
	// updates reorder timestamps.
	sort.Slice(steps, func(i, j int) bool { return steps[i].Ordinal < steps[j].Ordinal })
	return steps, nil
}

// ── Agent messages ───────────────────────────────────────────

func (p *PostgresStore) AddAgentMessage(ctx context.Context, m *models.AgentMessage) error {
	return p.insert(ctx, m.ID, m.SessionID, m.UserID, models.DataTypeAgentMessage, m, func(ts time.Time) { m.Timestamp = ts })
}

func (p *PostgresStore) ListMessagesBySession(ctx context.Context, userID, sessionID string) ([]*models.AgentMessage, error) {
	return pgList[models.AgentMessage](p, ctx, Query{UserID: userID, DataType: models.DataTypeAgentMessage, SessionID: sessionID})
}

func (p *PostgresStore) ListMessagesByPlan(ctx context.Context, userID, planID string) ([]*models.AgentMessage, error) {
	return pgList[models.AgentMessage](p, ctx, Query{UserID: userID, DataType: models.DataTypeAgentMessage, PlanID: planID})
}

func (p *PostgresStore) ListMessagesByUser(ctx context.Context, userID string, limit int) ([]*models.AgentMessage, error) {
	if limit <= 0 {
		limit = DefaultMessageListLimit
	}
	return pgList[models.AgentMessage](p, ctx, Query{UserID: userID, DataType: models.DataTypeAgentMessage, Limit: limit})
}

// ── Maintenance ──────────────────────────────────────────────

func (p *PostgresStore) DeleteAllOfType(ctx context.Context, dataType models.DataType, userID string) error {
	return withRetry(ctx, func() error {
		_, err := p.pool.Exec(ctx,
			`DELETE FROM documents WHERE user_id = $1 AND data_type = $2`,
			userID, string(dataType))
		return classify("delete "+string(dataType), err)
	})
}

func (p *PostgresStore) Health(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return &TransportError{Op: "ping", Err: err}
	}
	return nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// ── Generic decode helpers ───────────────────────────────────

func pgGetOne[T any](p *PostgresStore, ctx context.Context, q Query) (*T, error) {
	q.Limit = 1
	out, err := pgList[T](p, ctx, q)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out[0], nil
}

func pgList[T any](p *PostgresStore, ctx context.Context, q Query) ([]*T, error) {
	docs, err := p.QueryDocuments(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := json.Unmarshal(doc.Payload, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s document %s: %w", doc.DataType, doc.ID, err)
		}
		out = append(out, &v)
	}
	return out, nil
}
