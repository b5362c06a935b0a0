// Package intent maps utterances to execution plans over the tool set.
package intent

// PlanEntry is one tool invocation descriptor. Entries with an empty
// DependsOn run concurrently; a dependent entry waits for the named
// predecessor and receives its result as extra input.
type PlanEntry struct {
	ID         string         `json:"id"`
	Tool       string         `json:"tool"`
	Arguments  map[string]any `json:"arguments"`
	DependsOn  string         `json:"depends_on,omitempty"`
	Confidence float64        `json:"confidence"`
}

// ExecutionPlan is the ordered set of invocations resolved for one turn.
type ExecutionPlan struct {
	Utterance string      `json:"utterance"`
	Entries   []PlanEntry `json:"entries"`
}

// Stages partitions the plan into dependency levels: stage 0 holds the
// independent entries, each later stage holds entries whose predecessor sits
// in an earlier stage.
func (p ExecutionPlan) Stages() [][]PlanEntry {
	var stages [][]PlanEntry
	placed := map[string]int{}
	remaining := append([]PlanEntry(nil), p.Entries...)

	for len(remaining) > 0 {
		var stage []PlanEntry
		var next []PlanEntry
		for _, entry := range remaining {
			if entry.DependsOn == "" {
				stage = append(stage, entry)
				continue
			}
			if _, ok := placed[entry.DependsOn]; ok {
				stage = append(stage, entry)
				continue
			}
			next = append(next, entry)
		}
		if len(stage) == 0 {
			// Unsatisfiable dependency; run the stragglers anyway
			// rather than dropping them.
			stage = next
			next = nil
		}
		for _, entry := range stage {
			placed[entry.ID] = len(stages)
		}
		stages = append(stages, stage)
		remaining = next
	}
	return stages
}
