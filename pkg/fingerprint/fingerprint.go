package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/Ramsey-B/banyan/pkg/models"
)

// Generate creates a deterministic fingerprint for a node's persisted
// content. Edge lists are sorted before hashing so insertion order never
// produces a spurious write.
func Generate(node *models.FamilyNode) string {
	canonical := map[string]any{
		"family_code":        node.FamilyCode,
		"person_id":          node.PersonID,
		"node_uid":           node.NodeUID,
		"user_id":            node.UserID,
		"name":               node.Name,
		"gender":             node.Gender,
		"age":                node.Age,
		"generation":         node.Generation,
		"life_status":        node.LifeStatus,
		"is_external_linked": node.IsExternalLinked,
		"canonical_family":   node.CanonicalFamilyCode,
		"canonical_node":     node.CanonicalNodeUID,
		"parents":            sortedCopy(node.ParentIDs()),
		"children":           sortedCopy(node.ChildIDs()),
		"spouses":            sortedCopy(node.SpouseIDs()),
		"siblings":           sortedCopy(node.SiblingIDs()),
	}

	hash := sha256.Sum256([]byte(canonicalize(canonical)))
	return hex.EncodeToString(hash[:])
}

// HasChanged compares two fingerprints to detect changes
func HasChanged(oldFingerprint, newFingerprint string) bool {
	return oldFingerprint != newFingerprint
}

func sortedCopy(ids []int) []int {
	out := make([]int, len(ids))
	copy(out, ids)
	sort.Ints(out)
	return out
}

// canonicalize creates a deterministic string representation of a value
// by sorting map keys and recursively processing nested structures
func canonicalize(data any) string {
	switch v := data.(type) {
	case map[string]any:
		return canonicalizeMap(v)
	default:
		// For primitives and slices, JSON encoding is already deterministic
		b, _ := json.Marshal(v)
		return string(b)
	}
}

func canonicalizeMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := "{"
	for i, k := range keys {
		if i > 0 {
			result += ","
		}
		keyJSON, _ := json.Marshal(k)
		result += string(keyJSON) + ":" + canonicalize(m[k])
	}
	result += "}"
	return result
}
