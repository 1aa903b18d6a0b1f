package graph

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/banyan/internal/metrics"
	"github.com/Ramsey-B/banyan/internal/tracing"
	"github.com/Ramsey-B/banyan/pkg/models"
)

// Mirror maintains a navigational copy of family graphs in Memgraph.
// All writes are best-effort; failures are logged and never surfaced to
// the relational write path.
type Mirror struct {
	client *Client
	logger ectologger.Logger
}

// NewMirror creates a new graph mirror
func NewMirror(client *Client, logger ectologger.Logger) *Mirror {
	return &Mirror{
		client: client,
		logger: logger,
	}
}

// SyncFamily replaces the mirrored copy of one family: all PERSON nodes
// plus PARENT_OF, SPOUSE_OF, and SIBLING_OF edges.
func (m *Mirror) SyncFamily(ctx context.Context, familyCode string, nodes []*models.FamilyNode) {
	ctx, span := tracing.StartSpan(ctx, "graph.Mirror.SyncFamily")
	defer span.End()

	if m.client == nil {
		return
	}

	log := m.logger.WithContext(ctx).WithFields(map[string]any{
		"family_code": familyCode,
		"node_count":  len(nodes),
	})

	_, err := m.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MATCH (p:PERSON {family_code: $family_code})
			DETACH DELETE p
		`, map[string]any{"family_code": familyCode}); err != nil {
			return nil, err
		}

		for _, node := range nodes {
			props := map[string]any{
				"family_code":        node.FamilyCode,
				"person_id":          node.PersonID,
				"node_uid":           node.NodeUID,
				"name":               node.Name,
				"gender":             string(node.Gender),
				"generation":         node.Generation,
				"is_external_linked": node.IsExternalLinked,
			}
			if node.UserID != nil {
				props["user_id"] = *node.UserID
			}
			if _, err := tx.Run(ctx, `
				MERGE (p:PERSON {family_code: $family_code, person_id: $person_id})
				SET p = $props
			`, map[string]any{
				"family_code": node.FamilyCode,
				"person_id":   node.PersonID,
				"props":       props,
			}); err != nil {
				return nil, err
			}
		}

		for _, node := range nodes {
			for _, child := range node.ChildIDs() {
				if err := m.mergeEdge(ctx, tx, familyCode, node.PersonID, child, "PARENT_OF"); err != nil {
					return nil, err
				}
			}
			for _, spouse := range node.SpouseIDs() {
				// undirected pair, mirror once
				if node.PersonID < spouse {
					if err := m.mergeEdge(ctx, tx, familyCode, node.PersonID, spouse, "SPOUSE_OF"); err != nil {
						return nil, err
					}
				}
			}
			for _, sibling := range node.SiblingIDs() {
				if node.PersonID < sibling {
					if err := m.mergeEdge(ctx, tx, familyCode, node.PersonID, sibling, "SIBLING_OF"); err != nil {
						return nil, err
					}
				}
			}
		}

		return nil, nil
	})
	if err != nil {
		metrics.RecordMirrorSync("error")
		log.WithError(err).Warn("Failed to mirror family graph")
		return
	}

	metrics.RecordMirrorSync("success")
	log.Debug("Mirrored family graph")
}

func (m *Mirror) mergeEdge(ctx context.Context, tx neo4j.ManagedTransaction, familyCode string, from, to int, relType string) error {
	cypher := `
		MATCH (a:PERSON {family_code: $family_code, person_id: $from})
		MATCH (b:PERSON {family_code: $family_code, person_id: $to})
		MERGE (a)-[:` + relType + `]->(b)
	`
	_, err := tx.Run(ctx, cypher, map[string]any{
		"family_code": familyCode,
		"from":        from,
		"to":          to,
	})
	return err
}
