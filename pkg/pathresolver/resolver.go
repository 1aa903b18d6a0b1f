// Package pathresolver enumerates reachable families over spouse chains
package pathresolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/banyan/internal/tracing"
	"github.com/Ramsey-B/banyan/pkg/models"
)

// NodeSource loads nodes for traversal
type NodeSource interface {
	LoadFamily(ctx context.Context, familyCode string) ([]*models.FamilyNode, error)
	FindByUserID(ctx context.Context, userID string) ([]*models.FamilyNode, error)
}

// HintSource supplies externally recorded associated family codes
type HintSource interface {
	GetAssociatedFamilyCodes(ctx context.Context, userID string) ([]string, error)
}

// PrefixCache stores resolved prefixes between requests
type PrefixCache interface {
	Get(ctx context.Context, userID string) ([]models.FamilyPrefix, bool)
	Set(ctx context.Context, userID string, prefixes []models.FamilyPrefix)
}

// Resolver walks spouse edges breadth-first from a root person and
// emits one (familyCode, prefix) pair per newly discovered family. The
// prefix starts with S and appends H or W per spouse hop based on the
// target's gender. External-linked shadow cards are followed into their
// canonical family without consuming a hop letter.
type Resolver struct {
	nodes  NodeSource
	hints  HintSource
	cache  PrefixCache
	logger ectologger.Logger
}

// NewResolver creates a new relationship path resolver
func NewResolver(nodes NodeSource, hints HintSource, logger ectologger.Logger) *Resolver {
	return &Resolver{
		nodes:  nodes,
		hints:  hints,
		logger: logger,
	}
}

// WithCache attaches a prefix cache. Results are served from the cache
// until they expire.
func (r *Resolver) WithCache(cache PrefixCache) *Resolver {
	r.cache = cache
	return r
}

type visitState struct {
	familyCode string
	personID   int
	prefix     string
}

// ResolvePrefixes returns every family reachable from the user's nodes
// over spouse chains, deduplicated by family code, plus any associated
// family hints with a generic prefix.
func (r *Resolver) ResolvePrefixes(ctx context.Context, rootUserID string) ([]models.FamilyPrefix, error) {
	ctx, span := tracing.StartSpan(ctx, "pathresolver.Resolver.ResolvePrefixes")
	defer span.End()

	if r.cache != nil {
		if cached, ok := r.cache.Get(ctx, rootUserID); ok {
			return cached, nil
		}
	}

	roots, err := r.nodes.FindByUserID(ctx, rootUserID)
	if err != nil {
		return nil, err
	}

	families := make(map[string][]*models.FamilyNode)
	indexes := make(map[string]map[int]*models.FamilyNode)
	loadFamily := func(code string) (map[int]*models.FamilyNode, error) {
		if idx, ok := indexes[code]; ok {
			return idx, nil
		}
		nodes, err := r.nodes.LoadFamily(ctx, code)
		if err != nil {
			return nil, err
		}
		idx := make(map[int]*models.FamilyNode, len(nodes))
		for _, n := range nodes {
			idx[n.PersonID] = n
		}
		families[code] = nodes
		indexes[code] = idx
		return idx, nil
	}

	discovered := make(map[string]string)
	visited := make(map[string]bool)
	var queue []visitState

	for _, root := range roots {
		key := fmt.Sprintf("%s:%d", root.FamilyCode, root.PersonID)
		if visited[key] {
			continue
		}
		visited[key] = true
		discovered[root.FamilyCode] = "" // own families carry no prefix
		queue = append(queue, visitState{familyCode: root.FamilyCode, personID: root.PersonID, prefix: "S"})
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		index, err := loadFamily(current.familyCode)
		if err != nil {
			return nil, err
		}
		node := index[current.personID]
		if node == nil {
			continue
		}

		// follow a shadow card into its canonical family, no hop letter
		if node.IsExternalLinked && node.CanonicalFamilyCode != nil && node.CanonicalNodeUID != nil {
			canonicalIndex, err := loadFamily(*node.CanonicalFamilyCode)
			if err != nil {
				return nil, err
			}
			for _, canonical := range canonicalIndex {
				if canonical.NodeUID == *node.CanonicalNodeUID {
					key := fmt.Sprintf("%s:%d", canonical.FamilyCode, canonical.PersonID)
					if !visited[key] {
						visited[key] = true
						if _, ok := discovered[canonical.FamilyCode]; !ok {
							discovered[canonical.FamilyCode] = current.prefix
						}
						queue = append(queue, visitState{familyCode: canonical.FamilyCode, personID: canonical.PersonID, prefix: current.prefix})
					}
					break
				}
			}
		}

		for _, spouseID := range node.SpouseIDs() {
			spouse := index[spouseID]
			if spouse == nil {
				continue
			}
			key := fmt.Sprintf("%s:%d", spouse.FamilyCode, spouse.PersonID)
			if visited[key] {
				continue
			}
			visited[key] = true

			prefix := current.prefix + hopLetter(spouse.Gender)
			if _, ok := discovered[spouse.FamilyCode]; !ok {
				discovered[spouse.FamilyCode] = prefix
			}
			queue = append(queue, visitState{familyCode: spouse.FamilyCode, personID: spouse.PersonID, prefix: prefix})
		}
	}

	// merge associated family hints with a generic prefix
	if r.hints != nil {
		hints, err := r.hints.GetAssociatedFamilyCodes(ctx, rootUserID)
		if err != nil {
			return nil, err
		}
		for _, code := range hints {
			if _, ok := discovered[code]; !ok {
				discovered[code] = "S"
			}
		}
	}

	out := make([]models.FamilyPrefix, 0, len(discovered))
	for code, prefix := range discovered {
		if prefix == "" {
			continue // the user's own families
		}
		out = append(out, models.FamilyPrefix{FamilyCode: code, Prefix: prefix})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FamilyCode < out[j].FamilyCode })

	if r.cache != nil {
		r.cache.Set(ctx, rootUserID, out)
	}

	return out, nil
}

func hopLetter(gender models.Gender) string {
	switch gender {
	case models.GenderMale:
		return "H"
	case models.GenderFemale:
		return "W"
	default:
		return "S"
	}
}
