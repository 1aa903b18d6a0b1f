package matching

import (
	"fmt"
	"sort"

	"github.com/Ramsey-B/banyan/pkg/models"
)

// AnalyzeStructure inspects one family's graph for structural defects:
// fragmentation into multiple connected components, orphan parent
// references, and directed cycles in the parent-edge subgraph.
func AnalyzeStructure(familyCode string, persons []models.FamilyPerson) []models.StructuralDefect {
	defects := []models.StructuralDefect{}
	if len(persons) == 0 {
		return defects
	}

	index := make(map[int]*models.FamilyPerson, len(persons))
	for i := range persons {
		index[persons[i].PersonID] = &persons[i]
	}

	if components := countComponents(persons, index); components > 1 {
		defects = append(defects, models.StructuralDefect{
			FamilyCode: familyCode,
			Kind:       models.DefectFragmented,
			Components: components,
			Message:    fmt.Sprintf("family graph is split into %d disconnected components", components),
		})
	}

	if orphans := findOrphans(persons, index); len(orphans) > 0 {
		defects = append(defects, models.StructuralDefect{
			FamilyCode: familyCode,
			Kind:       models.DefectOrphan,
			PersonIDs:  orphans,
			Message:    fmt.Sprintf("%d persons reference parents missing from the family", len(orphans)),
		})
	}

	for _, cycle := range findParentCycles(persons, index) {
		defects = append(defects, models.StructuralDefect{
			FamilyCode: familyCode,
			Kind:       models.DefectCycle,
			PersonIDs:  cycle,
			Message:    "parent edges form a cycle",
		})
	}

	return defects
}

// countComponents runs a breadth-first traversal over the undirected
// union of all four edge kinds.
func countComponents(persons []models.FamilyPerson, index map[int]*models.FamilyPerson) int {
	neighbors := func(p *models.FamilyPerson) []int {
		var out []int
		for _, list := range [][]int{p.Parents, p.Children, p.Spouses, p.Siblings} {
			for _, id := range list {
				if _, ok := index[id]; ok {
					out = append(out, id)
				}
			}
		}
		return out
	}

	visited := make(map[int]bool, len(persons))
	components := 0

	for i := range persons {
		start := persons[i].PersonID
		if visited[start] {
			continue
		}
		components++

		queue := []int{start}
		visited[start] = true
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			for _, next := range neighbors(index[current]) {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
	}

	return components
}

// findOrphans returns persons listing a parent id absent from the
// family's own index.
func findOrphans(persons []models.FamilyPerson, index map[int]*models.FamilyPerson) []int {
	var orphans []int
	for i := range persons {
		for _, p := range persons[i].Parents {
			if _, ok := index[p]; !ok {
				orphans = append(orphans, persons[i].PersonID)
				break
			}
		}
	}
	sort.Ints(orphans)
	return orphans
}

// findParentCycles runs a depth-first traversal restricted to parent
// edges with an explicit recursion stack, reporting each cycle's node
// sequence when a back edge to a stack member is found.
func findParentCycles(persons []models.FamilyPerson, index map[int]*models.FamilyPerson) [][]int {
	// parent -> children adjacency
	children := make(map[int][]int)
	for i := range persons {
		for _, p := range persons[i].Parents {
			if _, ok := index[p]; ok {
				children[p] = append(children[p], persons[i].PersonID)
			}
		}
	}
	for _, cs := range children {
		sort.Ints(cs)
	}

	roots := make([]int, 0, len(persons))
	for i := range persons {
		roots = append(roots, persons[i].PersonID)
	}
	sort.Ints(roots)

	var cycles [][]int
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
				start := 0
				for i, s := range stack {
					if s == c {
						start = i
						break
					}
				}
				cycle := append(append([]int{}, stack[start:]...), c)
				cycles = append(cycles, cycle)
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
