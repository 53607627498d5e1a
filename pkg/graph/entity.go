package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/iris/pkg/models"
	"github.com/Ramsey-B/iris/pkg/tracing"
)

const entityLabel = "Entity"

// EntityStore persists entities as :Entity nodes
type EntityStore struct {
	client *Client
	logger ectologger.Logger
	now    func() time.Time
}

// NewEntityStore creates a new entity store
func NewEntityStore(client *Client, logger ectologger.Logger) *EntityStore {
	return &EntityStore{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// EnsureSchema creates the id uniqueness constraint
func (s *EntityStore) EnsureSchema(ctx context.Context) error {
	cypher := fmt.Sprintf(`CREATE CONSTRAINT entity_id IF NOT EXISTS FOR (e:%s) REQUIRE e.id IS UNIQUE`, entityLabel)

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, nil)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to create entity constraint: %w", err)
	}
	return nil
}

// Create stores a new entity with a fresh id
func (s *EntityStore) Create(ctx context.Context, descriptor models.EntityDescriptor) (*models.StoredEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.EntityStore.Create")
	defer span.End()

	now := s.now().UTC()
	entity := &models.StoredEntity{
		ID:               uuid.NewString(),
		EntityDescriptor: descriptor,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	props, err := entityProps(entity)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_id":   entity.ID,
		"entity_type": entity.Type,
	})

	cypher := fmt.Sprintf(`CREATE (e:%s) SET e = $props RETURN e.id`, entityLabel)
	_, err = s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"props": props})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		log.WithError(err).Error("Failed to create entity in graph")
		return nil, fmt.Errorf("failed to create entity in graph: %w", err)
	}

	log.Debug("Created entity in graph")
	return entity, nil
}

// Get retrieves an entity by id. A missing entity returns nil, nil.
func (s *EntityStore) Get(ctx context.Context, id string) (*models.StoredEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.EntityStore.Get")
	defer span.End()

	cypher := fmt.Sprintf(`MATCH (e:%s {id: $id}) RETURN e`, entityLabel)

	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			return nil, result.Err()
		}
		node, ok := result.Record().Get("e")
		if !ok {
			return nil, nil
		}
		n, ok := node.(neo4j.Node)
		if !ok {
			return nil, fmt.Errorf("unexpected record value %T", node)
		}
		return n.Props, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get entity from graph: %w", err)
	}
	if result == nil {
		return nil, nil
	}

	entity, err := entityFromProps(result.(map[string]any))
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// ListAll returns every stored entity ordered by id
func (s *EntityStore) ListAll(ctx context.Context) ([]models.StoredEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.EntityStore.ListAll")
	defer span.End()

	cypher := fmt.Sprintf(`MATCH (e:%s) RETURN e ORDER BY e.id`, entityLabel)

	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, nil)
		if err != nil {
			return nil, err
		}
		var nodes []map[string]any
		for result.Next(ctx) {
			value, ok := result.Record().Get("e")
			if !ok {
				continue
			}
			if n, ok := value.(neo4j.Node); ok {
				nodes = append(nodes, n.Props)
			}
		}
		return nodes, result.Err()
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to list entities from graph")
		return nil, fmt.Errorf("failed to list entities from graph: %w", err)
	}

	nodes, _ := result.([]map[string]any)
	entities := make([]models.StoredEntity, 0, len(nodes))
	for _, props := range nodes {
		entity, err := entityFromProps(props)
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).WithField("entity_id", props["id"]).Warn("Skipping malformed entity node")
			continue
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// entityProps flattens an entity into node properties. Attributes are stored as a
// JSON string since node properties cannot hold maps.
func entityProps(e *models.StoredEntity) (map[string]any, error) {
	attributes := "{}"
	if len(e.Attributes) > 0 {
		raw, err := json.Marshal(e.Attributes)
		if err != nil {
			return nil, fmt.Errorf("failed to encode entity attributes: %w", err)
		}
		attributes = string(raw)
	}

	aliases := e.Aliases
	if aliases == nil {
		aliases = []string{}
	}

	return map[string]any{
		"id":         e.ID,
		"name":       e.Name,
		"type":       e.Type,
		"aliases":    aliases,
		"definition": e.Definition,
		"attributes": attributes,
		"source":     e.Source,
		"created_at": e.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at": e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func entityFromProps(props map[string]any) (models.StoredEntity, error) {
	var e models.StoredEntity

	id, _ := props["id"].(string)
	if id == "" {
		return e, fmt.Errorf("entity node has no id")
	}
	e.ID = id
	e.Name, _ = props["name"].(string)
	e.Type, _ = props["type"].(string)
	e.Definition, _ = props["definition"].(string)
	e.Source, _ = props["source"].(string)

	switch aliases := props["aliases"].(type) {
	case []string:
		e.Aliases = aliases
	case []any:
		for _, a := range aliases {
			if s, ok := a.(string); ok {
				e.Aliases = append(e.Aliases, s)
			}
		}
	}

	if raw, ok := props["attributes"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &e.Attributes); err != nil {
			return e, fmt.Errorf("entity %s has malformed attributes: %w", id, err)
		}
	}

	e.CreatedAt = parseTime(props["created_at"])
	e.UpdatedAt = parseTime(props["updated_at"])
	return e, nil
}

func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err == nil {
			return parsed
		}
	}
	return time.Time{}
}
