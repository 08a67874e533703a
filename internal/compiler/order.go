package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/loregate/internal/ir"
)

// OrderWarning reports a tag dependency the procedure order cannot satisfy
// within one pass.
//
// These are warnings, not errors: a later unit may still emit the tag for
// the next turn's history-based rules, and authors sometimes intend it.
type OrderWarning struct {
	Path    []string `json:"path"`    // unit keys involved
	Tag     string   `json:"tag,omitempty"`
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeTagOrder performs static tag-flow analysis on a compiled procedure.
//
// Units communicate only through tags, so a unit that requires a tag can
// only be satisfied by an emitter that runs before it. The analysis:
//  1. Collect which units emit and which units read each tag
//  2. Warn when every emitter of a read tag runs at or after the reader
//  3. Note tags that are read but never emitted by any unit
//  4. Build emitter → reader edges and use Tarjan's algorithm to report
//     strongly connected components as tag cycles
//
// Results follow procedure order and are deterministic.
func AnalyzeTagOrder(proc *ir.Procedure) []OrderWarning {
	warnings := []OrderWarning{}
	if proc == nil {
		return warnings
	}

	flows := make([]tagFlow, len(proc.Units))
	emitters := make(map[string][]int)
	for i, u := range proc.Units {
		flows[i] = unitTagFlow(u)
		for _, t := range flows[i].emits {
			emitters[t] = append(emitters[t], i)
		}
	}

	for i, f := range flows {
		for _, t := range f.reads {
			idx, ok := emitters[t]
			if !ok {
				warnings = append(warnings, OrderWarning{
					Path:    []string{proc.Units[i].Key},
					Tag:     t,
					Message: fmt.Sprintf("%s reads tag %q which no unit emits", proc.Units[i].Key, t),
					Level:   "info",
				})
				continue
			}
			if slices.IndexFunc(idx, func(e int) bool { return e < i }) >= 0 {
				continue
			}
			path := []string{proc.Units[i].Key}
			for _, e := range idx {
				path = append(path, proc.Units[e].Key)
			}
			warnings = append(warnings, OrderWarning{
				Path:    path,
				Tag:     t,
				Message: fmt.Sprintf("%s reads tag %q emitted only by %s, which run later", path[0], t, strings.Join(path[1:], ", ")),
				Level:   "warning",
			})
		}
	}

	graph := buildTagGraph(proc, flows)
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}

	return warnings
}

// tagFlow lists the tags a unit emits and the tags its gates read.
type tagFlow struct {
	emits []string
	reads []string
}

func unitTagFlow(u ir.Unit) tagFlow {
	var f tagFlow
	switch {
	case u.Stage != nil:
		if u.Stage.ID == ir.StageEmotion {
			for _, s := range u.Stage.Signals {
				f.emits = appendUnique(f.emits, s.Emit)
			}
		}
	case u.Rule != nil:
		ruleTagFlow(&f, u.Rule)
	case u.Cue != nil:
		for i := range u.Cue.Cues {
			ruleTagFlow(&f, &u.Cue.Cues[i])
		}
	case u.Chain != nil:
		for _, b := range u.Chain.Blocks {
			conditionReads(&f, b.Conditions)
			for _, a := range b.Actions {
				if a.Kind == ir.ActionSetTag {
					f.emits = appendUnique(f.emits, a.Tag)
				}
			}
		}
	case u.Scoring != nil:
		conditionReads(&f, u.Scoring.Conditions)
	}
	return f
}

func ruleTagFlow(f *tagFlow, r *ir.Rule) {
	for _, t := range r.RequireTags.Tags {
		f.reads = appendUnique(f.reads, t)
	}
	if r.Gates != nil && r.Gates.Emotion != nil {
		for _, t := range r.Gates.Emotion.AndAny {
			f.reads = appendUnique(f.reads, t)
		}
		for _, t := range r.Gates.Emotion.AndAll {
			f.reads = appendUnique(f.reads, t)
		}
	}
	for _, t := range r.EmitTags {
		f.emits = appendUnique(f.emits, t)
	}
	for i := range r.Shifts {
		ruleTagFlow(f, &r.Shifts[i])
	}
}

func conditionReads(f *tagFlow, conds []ir.Condition) {
	for _, c := range conds {
		if c.Kind == ir.CondTag || c.Kind == ir.CondEmotion {
			for _, t := range c.Tags {
				f.reads = appendUnique(f.reads, t)
			}
		}
	}
}

func appendUnique(s []string, v string) []string {
	if v == "" || slices.Contains(s, v) {
		return s
	}
	return append(s, v)
}

// tagGraph maps unit key → keys of units that read a tag it emits.
// order holds the keys in procedure order for deterministic traversal.
type tagGraph struct {
	order []string
	edges map[string][]string
}

func buildTagGraph(proc *ir.Procedure, flows []tagFlow) tagGraph {
	g := tagGraph{edges: make(map[string][]string)}
	readers := make(map[string][]string)
	for i, f := range flows {
		for _, t := range f.reads {
			readers[t] = appendUnique(readers[t], proc.Units[i].Key)
		}
	}
	for i, f := range flows {
		key := proc.Units[i].Key
		g.order = append(g.order, key)
		for _, t := range f.emits {
			for _, r := range readers[t] {
				g.edges[key] = appendUnique(g.edges[key], r)
			}
		}
	}
	return g
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph tagGraph) bool {
	return slices.Contains(graph.edges[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of unit keys.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph tagGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// If v is a root node, pop the stack and create an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Reverse(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, node := range graph.order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to an OrderWarning.
func cycleSCCToWarning(scc []string, graph tagGraph) OrderWarning {
	if len(scc) == 1 {
		key := scc[0]
		return OrderWarning{
			Path:    []string{key, key},
			Message: fmt.Sprintf("%s reads a tag it emits itself", key),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return OrderWarning{
		Path:    path,
		Message: fmt.Sprintf("tag cycle detected: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath follows edges inside the SCC from its first member
// until it returns to the start.
func reconstructCyclePath(scc []string, graph tagGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool, len(scc))
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph.edges[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
