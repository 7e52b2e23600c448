package merge

import (
	"fmt"
	"sort"
)

// Suggestion strategy names.
const (
	StrategyPreferSource = "prefer-source"
	StrategyPreferTarget = "prefer-target"
	StrategyConcat       = "concat"
	StrategyUnion        = "union"
)

// Suggest proposes candidate resolutions for a conflict. Suggestions
// are heuristics offered to a reviewer; nothing applies them
// automatically.
//
// Every conflict gets prefer-source and prefer-target. Two differing
// strings additionally get their concatenation; two maps get a union
// with source values winning on shared keys.
func Suggest(c Conflict) []Suggestion {
	out := []Suggestion{
		{Strategy: StrategyPreferSource, Value: c.Source},
		{Strategy: StrategyPreferTarget, Value: c.Target},
	}

	srcStr, srcIsStr := c.Source.(string)
	tgtStr, tgtIsStr := c.Target.(string)
	if srcIsStr && tgtIsStr && srcStr != tgtStr {
		out = append(out, Suggestion{
			Strategy: StrategyConcat,
			Value:    fmt.Sprintf("%s / %s", tgtStr, srcStr),
		})
	}

	srcMap, srcIsMap := c.Source.(map[string]any)
	tgtMap, tgtIsMap := c.Target.(map[string]any)
	if srcIsMap && tgtIsMap {
		out = append(out, Suggestion{
			Strategy: StrategyUnion,
			Value:    unionMaps(tgtMap, srcMap),
		})
	}
	return out
}

// unionMaps merges over into base without mutating either; over wins
// on shared keys.
func unionMaps(base, over map[string]any) map[string]any {
	keys := make([]string, 0, len(base)+len(over))
	for k := range base {
		keys = append(keys, k)
	}
	for k := range over {
		if _, ok := base[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := over[k]; ok {
			out[k] = v
			continue
		}
		out[k] = base[k]
	}
	return out
}
