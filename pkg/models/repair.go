package models

// RepairReport summarizes one integrity repair pass over a family.
// The counts are telemetry, not user-facing errors.
type RepairReport struct {
	FamilyCode          string      `json:"family_code"`
	UpdatedNodes        int         `json:"updated_nodes"`
	RemovedParentEdges  int         `json:"removed_parent_edges"`
	RemovedSpouseEdges  int         `json:"removed_spouse_edges"`
	RemovedSiblingEdges int         `json:"removed_sibling_edges"`
	CorrectedGens       int         `json:"corrected_generations"`
	Cycles              []CycleInfo `json:"cycles,omitempty"`
}

// CycleInfo reports a directed cycle found in the parent-edge subgraph.
// Cycles are reported, not broken.
type CycleInfo struct {
	FamilyCode       string `json:"family_code"`
	PersonIDsInCycle []int  `json:"person_ids_in_cycle"`
}
