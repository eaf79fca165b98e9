package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/taskmesh/taskmesh/pkg/models"
)

// MemoryStore is an in-process Store used by tests and local runs.
// It reproduces the Postgres store's semantics: per-document atomic
// writes, server-assigned strictly increasing timestamps, and
// user-scoped partitioned queries.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[memKey]*Document
	lastTS time.Time
}

type memKey struct {
	sessionID string
	id        string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[memKey]*Document)}
}

// nextTS returns a strictly increasing UTC timestamp. Callers must hold mu.
func (m *MemoryStore) nextTS() time.Time {
	ts := time.Now().UTC()
	if !ts.After(m.lastTS) {
		ts = m.lastTS.Add(time.Microsecond)
	}
	m.lastTS = ts
	return ts
}

func (m *MemoryStore) add(id, sessionID, userID string, dataType models.DataType, entity any, setTS func(time.Time)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memKey{sessionID: sessionID, id: id}
	if _, ok := m.docs[key]; ok {
		return ErrConflict
	}
	ts := m.nextTS()
	setTS(ts)
	payload, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", dataType, err)
	}
	m.docs[key] = &Document{
		ID:        id,
		SessionID: sessionID,
		UserID:    userID,
		DataType:  dataType,
		Timestamp: ts,
		Payload:   payload,
	}
	return nil
}

func (m *MemoryStore) update(id, sessionID, userID string, dataType models.DataType, entity any, setTS func(time.Time)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memKey{sessionID: sessionID, id: id}
	doc, ok := m.docs[key]
	if !ok || doc.UserID != userID || doc.DataType != dataType {
		return ErrNotFound
	}
	ts := m.nextTS()
	setTS(ts)
	payload, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", dataType, err)
	}
	doc.Timestamp = ts
	doc.Payload = payload
	return nil
}

// QueryDocuments implements the generic partitioned query. Results are
// ordered by timestamp ascending (descending when q.Newest is set).
func (m *MemoryStore) QueryDocuments(_ context.Context, q Query) ([]*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Document
	for _, doc := range m.docs {
		if doc.UserID != q.UserID || doc.DataType != q.DataType {
			continue
		}
		if q.SessionID != "" && doc.SessionID != q.SessionID {
			continue
		}
		if q.PlanID != "" && !payloadHasPlanID(doc.Payload, q.PlanID) {
			continue
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool {
		if q.Newest {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func payloadHasPlanID(payload json.RawMessage, planID string) bool {
	var probe struct {
		PlanID string `json:"plan_id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return false
	}
	return probe.PlanID == planID
}

// ── Sessions ─────────────────────────────────────────────────

func (m *MemoryStore) AddSession(_ context.Context, s *models.Session) error {
	return m.add(s.ID, s.ID, s.UserID, models.DataTypeSession, s, func(ts time.Time) { s.Timestamp = ts })
}

func (m *MemoryStore) GetSession(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	return getOne[models.Session](m, ctx, Query{UserID: userID, DataType: models.DataTypeSession, SessionID: sessionID})
}

func (m *MemoryStore) ListSessions(ctx context.Context, userID string) ([]*models.Session, error) {
	return listAll[models.Session](m, ctx, Query{UserID: userID, DataType: models.DataTypeSession})
}

// ── Plans ────────────────────────────────────────────────────

func (m *MemoryStore) AddPlan(_ context.Context, p *models.Plan) error {
	return m.add(p.ID, p.SessionID, p.UserID, models.DataTypePlan, p, func(ts time.Time) { p.Timestamp = ts })
}

func (m *MemoryStore) UpdatePlan(_ context.Context, p *models.Plan) error {
	return m.update(p.ID, p.SessionID, p.UserID, models.DataTypePlan, p, func(ts time.Time) { p.Timestamp = ts })
}

func (m *MemoryStore) GetPlan(ctx context.Context, userID, planID string) (*models.Plan, error) {
	plans, err := listAll[models.Plan](m, ctx, Query{UserID: userID, DataType: models.DataTypePlan})
	if err != nil {
		return nil, err
	}
	for _, p := range plans {
		if p.ID == planID {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetPlanBySession(ctx context.Context, userID, sessionID string) (*models.Plan, error) {
	return getOne[models.Plan](m, ctx, Query{UserID: userID, DataType: models.DataTypePlan, SessionID: sessionID, Newest: true})
}

// ListPlansBySession returns every plan created in the session, newest
// first, superseded plans included.
func (m *MemoryStore) ListPlansBySession(ctx context.Context, userID, sessionID string) ([]*models.Plan, error) {
	return listAll[models.Plan](m, ctx, Query{UserID: userID, DataType: models.DataTypePlan, SessionID: sessionID, Newest: true})
}

func (m *MemoryStore) ListPlans(ctx context.Context, userID string, limit int) ([]*models.Plan, error) {
	if limit <= 0 {
		limit = DefaultPlanListLimit
	}
	return listAll[models.Plan](m, ctx, Query{UserID: userID, DataType: models.DataTypePlan, Limit: limit, Newest: true})
}

// ── Steps ────────────────────────────────────────────────────

func (m *MemoryStore) AddStep(_ context.Context, s *models.Step) error {
	return m.add(s.ID, s.SessionID, s.UserID, models.DataTypeStep, s, func(ts time.Time) { s.Timestamp = ts })
}

func (m *MemoryStore) UpdateStep(_ context.Context, s *models.Step) error {
	return m.update(s.ID, s.SessionID, s.UserID, models.DataTypeStep, s, func(ts time.Time) { s.Timestamp = ts })
}

func (m *MemoryStore) GetStep(ctx context.Context, userID, sessionID, stepID string) (*models.Step, error) {
	steps, err := listAll[models.Step](m, ctx, Query{UserID: userID, DataType: models.DataTypeStep, SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	for _, s := range steps {
		if s.ID == stepID {
			return s, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListStepsByPlan(ctx context.Context, userID, planID string) ([]*models.Step, error) {
	steps, err := listAll[models.Step](m, ctx, Query{UserID: userID, DataType: models.DataTypeStep, PlanID: planID})
	if err != nil {
		return nil, err
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Ordinal < steps[j].Ordinal })
	return steps, nil
}

// ── Agent messages ───────────────────────────────────────────

func (m *MemoryStore) AddAgentMessage(_ context.Context, msg *models.AgentMessage) error {
	return m.add(msg.ID, msg.SessionID, msg.UserID, models.DataTypeAgentMessage, msg, func(ts time.Time) { msg.Timestamp = ts })
}

func (m *MemoryStore) ListMessagesBySession(ctx context.Context, userID, sessionID string) ([]*models.AgentMessage, error) {
	return listAll[models.AgentMessage](m, ctx, Query{UserID: userID, DataType: models.DataTypeAgentMessage, SessionID: sessionID})
}

func (m *MemoryStore) ListMessagesByPlan(ctx context.Context, userID, planID string) ([]*models.AgentMessage, error) {
	return listAll[models.AgentMessage](m, ctx, Query{UserID: userID, DataType: models.DataTypeAgentMessage, PlanID: planID})
}

func (m *MemoryStore) ListMessagesByUser(ctx context.Context, userID string, limit int) ([]*models.AgentMessage, error) {
	if limit <= 0 {
		limit = DefaultMessageListLimit
	}
	return listAll[models.AgentMessage](m, ctx, Query{UserID: userID, DataType: models.DataTypeAgentMessage, Limit: limit})
}

// ── Maintenance ──────────────────────────────────────────────

func (m *MemoryStore) DeleteAllOfType(_ context.Context, dataType models.DataType, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, doc := range m.docs {
		if doc.UserID == userID && doc.DataType == dataType {
			delete(m.docs, key)
		}
	}
	return nil
}

func (m *MemoryStore) Health(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

// ── Generic decode helpers ───────────────────────────────────

func getOne[T any](m *MemoryStore, ctx context.Context, q Query) (*T, error) {
	q.Limit = 1
	out, err := listAll[T](m, ctx, q)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out[0], nil
}

func listAll[T any](m *MemoryStore, ctx context.Context, q Query) ([]*T, error) {
	docs, err := m.QueryDocuments(ctx, q)
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
