// Package store provides the durable, partitioned document store holding
// sessions, plans, steps and agent messages. Documents are partitioned by
// session_id; every query is scoped to a user.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/taskmesh/taskmesh/pkg/models"
)

// DefaultPlanListLimit caps "list all plans" reads. It is a capacity cap,
// not a semantic limit.
const DefaultPlanListLimit = 5

// DefaultMessageListLimit caps per-user message reads.
const DefaultMessageListLimit = 100

// Document is the raw persisted form of an entity: identity, partition
// key, type discriminator, server timestamp and JSON payload.
type Document struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	UserID    string          `json:"user_id"`
	DataType  models.DataType `json:"data_type"`
	Timestamp time.Time       `json:"ts"`
	Payload   json.RawMessage `json:"payload"`
}

// Query selects documents within one user scope. SessionID and PlanID
// narrow the partition; Limit of 0 means unbounded.
type Query struct {
	UserID    string
	DataType  models.DataType
	SessionID string
	PlanID    string
	Limit     int
	Newest    bool // order by ts descending when set
}

// Store is the single shared mutable state of the engine. Writes are
// atomic per document; reads within one partition observe prior writes.
// Timestamps are server-assigned and strictly increasing per document.
type Store interface {
	AddSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, userID, sessionID string) (*models.Session, error)
	ListSessions(ctx context.Context, userID string) ([]*models.Session, error)

	AddPlan(ctx context.Context, p *models.Plan) error
	UpdatePlan(ctx context.Context, p *models.Plan) error
	GetPlan(ctx context.Context, userID, planID string) (*models.Plan, error)
	GetPlanBySession(ctx context.Context, userID, sessionID string) (*models.Plan, error)
	ListPlansBySession(ctx context.Context, userID, sessionID string) ([]*models.Plan, error)
	ListPlans(ctx context.Context, userID string, limit int) ([]*models.Plan, error)

	AddStep(ctx context.Context, s *models.Step) error
	UpdateStep(ctx context.Context, s *models.Step) error
	GetStep(ctx context.Context, userID, sessionID, stepID string) (*models.Step, error)
	ListStepsByPlan(ctx context.Context, userID, planID string) ([]*models.Step, error)

	AddAgentMessage(ctx context.Context, m *models.AgentMessage) error
	ListMessagesBySession(ctx context.Context, userID, sessionID string) ([]*models.AgentMessage, error)
	ListMessagesByPlan(ctx context.Context, userID, planID string) ([]*models.AgentMessage, error)
	ListMessagesByUser(ctx context.Context, userID string, limit int) ([]*models.AgentMessage, error)

	// DeleteAllOfType removes every document of one kind belonging to a user.
	DeleteAllOfType(ctx context.Context, dataType models.DataType, userID string) error

	// QueryDocuments is the generic partitioned query underpinning the
	// typed operations. Exposed for operators and diagnostics.
	QueryDocuments(ctx context.Context, q Query) ([]*Document, error)

	Health(ctx context.Context) error
	Close() error
}
