// Package repair implements the family-tree integrity repair pass
package repair

import (
	"sort"

	"github.com/Ramsey-B/banyan/pkg/models"
)

// Repairer rebuilds canonical edge sets for one family's node set and
// enforces the graph invariants: edge symmetry, the two-parent cap,
// generation consistency, and no self-edges. It is a pure function of
// its input and never returns an error; malformed edges degrade to
// "drop the edge", counted in the report.
type Repairer struct{}

// NewRepairer creates a new repairer
func NewRepairer() *Repairer {
	return &Repairer{}
}

// parentEdge is a directed parent -> child edge
type parentEdge struct {
	parent int
	child  int
}

// pairEdge is an undirected spouse or sibling pair, stored with a < b
type pairEdge struct {
	a int
	b int
}

func makePair(x, y int) pairEdge {
	if x < y {
		return pairEdge{a: x, b: y}
	}
	return pairEdge{a: y, b: x}
}

// Repair corrects the edge lists and generations of every node in the
// family and returns the nodes whose content changed along with a
// report of what was removed. Input nodes are mutated in place.
func (r *Repairer) Repair(familyCode string, nodes []*models.FamilyNode) ([]*models.FamilyNode, models.RepairReport) {
	report := models.RepairReport{FamilyCode: familyCode}

	index := make(map[int]*models.FamilyNode, len(nodes))
	for _, n := range nodes {
		index[n.PersonID] = n
	}

	parentEdges, droppedParents := r.deriveParentEdges(nodes, index)
	spouseEdges, droppedSpouses := r.derivePairEdges(nodes, index, func(n *models.FamilyNode) []int { return n.SpouseIDs() })
	siblingEdges, droppedSiblings := r.derivePairEdges(nodes, index, func(n *models.FamilyNode) []int { return n.SiblingIDs() })

	report.RemovedParentEdges += droppedParents
	report.RemovedSpouseEdges += droppedSpouses
	report.RemovedSiblingEdges += droppedSiblings

	parentEdges, capped := r.capParents(parentEdges, index)
	report.RemovedParentEdges += capped

	report.Cycles = r.detectParentCycles(familyCode, parentEdges)

	parentEdges, mismatched := r.pruneMismatchedParents(parentEdges, index, report.Cycles)
	report.RemovedParentEdges += mismatched

	spouseEdges, droppedSpouses = r.pruneUnequalGenerations(spouseEdges, index)
	report.RemovedSpouseEdges += droppedSpouses

	siblingEdges, droppedSiblings = r.pruneUnequalGenerations(siblingEdges, index)
	report.RemovedSiblingEdges += droppedSiblings

	corrected := r.correctExternalGenerations(parentEdges, spouseEdges, siblingEdges, index)
	report.CorrectedGens = len(corrected)

	changed := r.rebuildEdgeLists(nodes, parentEdges, spouseEdges, siblingEdges)

	// generation corrections must persist even when edges were untouched
	inChanged := make(map[int]bool, len(changed))
	for _, n := range changed {
		inChanged[n.PersonID] = true
	}
	for id := range corrected {
		if !inChanged[id] {
			changed = append(changed, index[id])
		}
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i].PersonID < changed[j].PersonID })
	report.UpdatedNodes = len(changed)

	return changed, report
}

// deriveParentEdges collects the directed parent edge set from both the
// parents and children lists, discarding self-edges and references to
// person ids absent from the family.
func (r *Repairer) deriveParentEdges(nodes []*models.FamilyNode, index map[int]*models.FamilyNode) (map[parentEdge]bool, int) {
	edges := make(map[parentEdge]bool)
	dropped := 0

	for _, n := range nodes {
		for _, p := range n.ParentIDs() {
			if p == n.PersonID || index[p] == nil {
				dropped++
				continue
			}
			edges[parentEdge{parent: p, child: n.PersonID}] = true
		}
		for _, c := range n.ChildIDs() {
			if c == n.PersonID || index[c] == nil {
				dropped++
				continue
			}
			edges[parentEdge{parent: n.PersonID, child: c}] = true
		}
	}

	return edges, dropped
}

// derivePairEdges collects an undirected edge set from a symmetric list
func (r *Repairer) derivePairEdges(nodes []*models.FamilyNode, index map[int]*models.FamilyNode, list func(*models.FamilyNode) []int) (map[pairEdge]bool, int) {
	edges := make(map[pairEdge]bool)
	dropped := 0

	for _, n := range nodes {
		for _, other := range list(n) {
			if other == n.PersonID || index[other] == nil {
				dropped++
				continue
			}
			edges[makePair(n.PersonID, other)] = true
		}
	}

	return edges, dropped
}

// capParents enforces the two-parent cap. Candidates are ranked by
// generation match first (parent.generation == child.generation - 1),
// then local before external-linked, then lowest person id.
func (r *Repairer) capParents(edges map[parentEdge]bool, index map[int]*models.FamilyNode) (map[parentEdge]bool, int) {
	byChild := make(map[int][]int)
	for e := range edges {
		byChild[e.child] = append(byChild[e.child], e.parent)
	}

	removed := 0
	for child, parents := range byChild {
		if len(parents) <= 2 {
			continue
		}

		childGen := index[child].Generation
		sort.Slice(parents, func(i, j int) bool {
			pi, pj := index[parents[i]], index[parents[j]]
			genI := pi.Generation == childGen-1
			genJ := pj.Generation == childGen-1
			if genI != genJ {
				return genI
			}
			if pi.IsExternalLinked != pj.IsExternalLinked {
				return !pi.IsExternalLinked
			}
			return parents[i] < parents[j]
		})

		for _, p := range parents[2:] {
			delete(edges, parentEdge{parent: p, child: child})
			removed++
		}
	}

	return edges, removed
}

// pruneUnequalGenerations drops spouse/sibling pairs whose generations
// differ, unless one side is external-linked; those are left for the
// generation-correction step instead.
func (r *Repairer) pruneUnequalGenerations(edges map[pairEdge]bool, index map[int]*models.FamilyNode) (map[pairEdge]bool, int) {
	removed := 0
	for e := range edges {
		na, nb := index[e.a], index[e.b]
		if na.Generation == nb.Generation {
			continue
		}
		if na.IsExternalLinked || nb.IsExternalLinked {
			continue
		}
		delete(edges, e)
		removed++
	}
	return edges, removed
}

// pruneMismatchedParents drops parent edges whose parent sits at the
// wrong generation, unless the parent is external-linked (those are
// corrected instead) or the edge belongs to a reported cycle (cycles
// are surfaced for review, never auto-broken).
func (r *Repairer) pruneMismatchedParents(edges map[parentEdge]bool, index map[int]*models.FamilyNode, cycles []models.CycleInfo) (map[parentEdge]bool, int) {
	inCycle := make(map[parentEdge]bool)
	for _, c := range cycles {
		for i := 0; i+1 < len(c.PersonIDsInCycle); i++ {
			inCycle[parentEdge{parent: c.PersonIDsInCycle[i], child: c.PersonIDsInCycle[i+1]}] = true
		}
	}

	removed := 0
	for e := range edges {
		parent, child := index[e.parent], index[e.child]
		if parent.IsExternalLinked || parent.Generation == child.Generation-1 {
			continue
		}
		if inCycle[e] {
			continue
		}
		delete(edges, e)
		removed++
	}
	return edges, removed
}

// correctExternalGenerations synchronizes external-linked shadow nodes
// to their local anchors: parents sit one generation above their child,
// spouses and siblings share the partner's generation. Returns the set
// of corrected person ids.
func (r *Repairer) correctExternalGenerations(parentEdges map[parentEdge]bool, spouseEdges, siblingEdges map[pairEdge]bool, index map[int]*models.FamilyNode) map[int]bool {
	corrected := make(map[int]bool)

	for e := range parentEdges {
		parent, child := index[e.parent], index[e.child]
		if parent.IsExternalLinked && parent.Generation != child.Generation-1 {
			parent.Generation = child.Generation - 1
			corrected[parent.PersonID] = true
		}
	}

	correctPair := func(edges map[pairEdge]bool) {
		for e := range edges {
			na, nb := index[e.a], index[e.b]
			if na.Generation == nb.Generation {
				continue
			}
			if na.IsExternalLinked && !nb.IsExternalLinked {
				na.Generation = nb.Generation
				corrected[na.PersonID] = true
			} else if nb.IsExternalLinked && !na.IsExternalLinked {
				nb.Generation = na.Generation
				corrected[nb.PersonID] = true
			}
		}
	}
	correctPair(spouseEdges)
	correctPair(siblingEdges)

	return corrected
}

// detectParentCycles runs a depth-first traversal over the capped
// parent edges with an explicit recursion stack and reports every cycle
// found. Cycles are reported, never auto-broken.
func (r *Repairer) detectParentCycles(familyCode string, edges map[parentEdge]bool) []models.CycleInfo {
	children := make(map[int][]int)
	ids := make(map[int]bool)
	for e := range edges {
		children[e.parent] = append(children[e.parent], e.child)
		ids[e.parent] = true
		ids[e.child] = true
	}
	for _, cs := range children {
		sort.Ints(cs)
	}

	roots := make([]int, 0, len(ids))
	for id := range ids {
		roots = append(roots, id)
	}
	sort.Ints(roots)

	var cycles []models.CycleInfo
	visited := make(map[int]bool)
	onStack := make(map[int]bool)
	var stack []int

	var visit func(id int)
	visit = func(id int) {
		visited[id] = true
		onStack[id] = true
		stack = append(stack, id)

		for _, c := range children[id] {
			if onStack[c] {
				// back edge: slice the stack from the cycle entry point
				start := 0
				for i, s := range stack {
					if s == c {
						start = i
						break
					}
				}
				seq := append(append([]int{}, stack[start:]...), c)
				cycles = append(cycles, models.CycleInfo{FamilyCode: familyCode, PersonIDsInCycle: seq})
				continue
			}
			if !visited[c] {
				visit(c)
			}
		}

		stack = stack[:len(stack)-1]
		onStack[id] = false
	}

	for _, id := range roots {
		if !visited[id] {
			visit(id)
		}
	}

	return cycles
}

// rebuildEdgeLists derives each node's four lists from the surviving
// edge sets, sorted for determinism, and returns the nodes whose lists
// changed.
func (r *Repairer) rebuildEdgeLists(nodes []*models.FamilyNode, parentEdges map[parentEdge]bool, spouseEdges, siblingEdges map[pairEdge]bool) []*models.FamilyNode {
	parents := make(map[int][]int)
	childLists := make(map[int][]int)
	for e := range parentEdges {
		parents[e.child] = append(parents[e.child], e.parent)
		childLists[e.parent] = append(childLists[e.parent], e.child)
	}

	spouses := make(map[int][]int)
	for e := range spouseEdges {
		spouses[e.a] = append(spouses[e.a], e.b)
		spouses[e.b] = append(spouses[e.b], e.a)
	}

	siblings := make(map[int][]int)
	for e := range siblingEdges {
		siblings[e.a] = append(siblings[e.a], e.b)
		siblings[e.b] = append(siblings[e.b], e.a)
	}

	var changed []*models.FamilyNode
	for _, n := range nodes {
		newParents := sortedOrEmpty(parents[n.PersonID])
		newChildren := sortedOrEmpty(childLists[n.PersonID])
		newSpouses := sortedOrEmpty(spouses[n.PersonID])
		newSiblings := sortedOrEmpty(siblings[n.PersonID])

		if sameSet(n.ParentIDs(), newParents) &&
			sameSet(n.ChildIDs(), newChildren) &&
			sameSet(n.SpouseIDs(), newSpouses) &&
			sameSet(n.SiblingIDs(), newSiblings) {
			continue
		}

		n.SetEdges(newParents, newChildren, newSpouses, newSiblings)
		changed = append(changed, n)
	}

	return changed
}

func sortedOrEmpty(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	sort.Ints(ids)
	return ids
}

// sameSet compares two id lists order-independently
func sameSet(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[int]int, len(a))
	for _, x := range a {
		seen[x]++
	}
	for _, y := range b {
		seen[y]--
		if seen[y] < 0 {
			return false
		}
	}
	return true
}
