// Package orgtree is an immutable, arena-backed index over the organisation
// forest. Nodes are addressed by slice index internally; the build pass
// rejects cycles, duplicate identifiers and dangling parent references.
package orgtree

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Level string

const (
	LevelEmployee Level = "employee"
	LevelTeam     Level = "team"
	LevelLeader   Level = "leader"
	LevelRegion   Level = "region"
	LevelCountry  Level = "country"
)

var levelRank = map[Level]int{
	LevelEmployee: 0,
	LevelTeam:     1,
	LevelLeader:   2,
	LevelRegion:   3,
	LevelCountry:  4,
}

func ParseLevel(s string) (Level, bool) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	_, ok := levelRank[l]
	return l, ok
}

// Rank orders levels from employee (0) to country (4).
func (l Level) Rank() int {
	return levelRank[l]
}

type Node struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
	Level    Level  `json:"level"`
	Code     string `json:"code,omitempty"`
	Name     string `json:"name,omitempty"`
}

var ErrIntegrity = errors.New("org hierarchy integrity violation")

// IntegrityError describes why a node set cannot form a forest.
type IntegrityError struct {
	Kind   string
	NodeID string
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("org hierarchy: %s at node %q: %s", e.Kind, e.NodeID, e.Detail)
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrity
}

const (
	KindDuplicateNode = "duplicate_node"
	KindOrphan        = "orphan"
	KindCycle         = "cycle"
	KindUnknownLevel  = "unknown_level"
	KindEmployeeChild = "employee_has_children"
	KindEmptyID       = "empty_id"
)

type entry struct {
	node     Node
	parent   int
	children []int
	depth    int
	enter    int
	exit     int
}

// Index is safe for concurrent reads once built.
type Index struct {
	entries []entry
	byID    map[string]int
	roots   []int
	order   []int // preorder
}

// Build validates nodes and assembles the forest. Input order does not
// affect the result: nodes, children and roots are ordered by ID.
func Build(nodes []Node) (*Index, error) {
	sorted := make([]Node, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	idx := &Index{
		entries: make([]entry, len(sorted)),
		byID:    make(map[string]int, len(sorted)),
	}
	for i, n := range sorted {
		if strings.TrimSpace(n.ID) == "" {
			return nil, &IntegrityError{Kind: KindEmptyID, NodeID: n.ID, Detail: "node identifier is empty"}
		}
		if _, ok := levelRank[n.Level]; !ok {
			return nil, &IntegrityError{Kind: KindUnknownLevel, NodeID: n.ID, Detail: fmt.Sprintf("level %q", n.Level)}
		}
		if _, dup := idx.byID[n.ID]; dup {
			return nil, &IntegrityError{Kind: KindDuplicateNode, NodeID: n.ID, Detail: "node listed more than once"}
		}
		idx.byID[n.ID] = i
		idx.entries[i] = entry{node: n, parent: -1}
	}

	for i := range idx.entries {
		pid := idx.entries[i].node.ParentID
		if pid == "" {
			idx.roots = append(idx.roots, i)
			continue
		}
		p, ok := idx.byID[pid]
		if !ok {
			return nil, &IntegrityError{Kind: KindOrphan, NodeID: idx.entries[i].node.ID, Detail: fmt.Sprintf("parent %q does not exist", pid)}
		}
		if idx.entries[p].node.Level == LevelEmployee {
			return nil, &IntegrityError{Kind: KindEmployeeChild, NodeID: pid, Detail: "employee nodes must be leaves"}
		}
		idx.entries[i].parent = p
		idx.entries[p].children = append(idx.entries[p].children, i)
	}

	if err := idx.detectCycles(); err != nil {
		return nil, err
	}
	idx.number()
	return idx, nil
}

// detectCycles walks parent pointers with a three-state visited set.
func (x *Index) detectCycles() error {
	const (
		unvisited = 0
		onPath    = 1
		done      = 2
	)
	state := make([]uint8, len(x.entries))
	path := make([]int, 0, 16)
	for start := range x.entries {
		if state[start] == done {
			continue
		}
		path = path[:0]
		cur := start
		for cur != -1 && state[cur] == unvisited {
			state[cur] = onPath
			path = append(path, cur)
			cur = x.entries[cur].parent
		}
		if cur != -1 && state[cur] == onPath {
			return &IntegrityError{Kind: KindCycle, NodeID: x.entries[cur].node.ID, Detail: "parent chain loops back to itself"}
		}
		for _, i := range path {
			state[i] = done
		}
	}
	return nil
}

// number assigns preorder enter/exit stamps so subtree membership is an
// interval check.
func (x *Index) number() {
	x.order = make([]int, 0, len(x.entries))
	type frame struct {
		idx   int
		child int
	}
	for _, root := range x.roots {
		stack := []frame{{idx: root}}
		x.entries[root].enter = len(x.order)
		x.order = append(x.order, root)
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			e := &x.entries[top.idx]
			if top.child < len(e.children) {
				c := e.children[top.child]
				top.child++
				x.entries[c].depth = e.depth + 1
				x.entries[c].enter = len(x.order)
				x.order = append(x.order, c)
				stack = append(stack, frame{idx: c})
				continue
			}
			e.exit = len(x.order) - 1
			stack = stack[:len(stack)-1]
		}
	}
}

func (x *Index) Len() int {
	return len(x.entries)
}

func (x *Index) Node(id string) (Node, bool) {
	i, ok := x.byID[id]
	if !ok {
		return Node{}, false
	}
	return x.entries[i].node, true
}

func (x *Index) Has(id string) bool {
	_, ok := x.byID[id]
	return ok
}

// Roots returns root node IDs in ID order.
func (x *Index) Roots() []string {
	return x.ids(x.roots)
}

func (x *Index) Children(id string) []string {
	i, ok := x.byID[id]
	if !ok {
		return nil
	}
	return x.ids(x.entries[i].children)
}

// Ancestors returns the path from the node's parent up to its root.
func (x *Index) Ancestors(id string) []string {
	i, ok := x.byID[id]
	if !ok {
		return nil
	}
	var path []string
	for p := x.entries[i].parent; p != -1; p = x.entries[p].parent {
		path = append(path, x.entries[p].node.ID)
	}
	return path
}

// Subtree returns id and all its descendants in preorder.
func (x *Index) Subtree(id string) []string {
	i, ok := x.byID[id]
	if !ok {
		return nil
	}
	e := x.entries[i]
	return x.ids(x.order[e.enter : e.exit+1])
}

// SubtreeAt returns the descendants-or-self of id at the given level.
func (x *Index) SubtreeAt(id string, level Level) []string {
	i, ok := x.byID[id]
	if !ok {
		return nil
	}
	e := x.entries[i]
	var out []string
	for _, j := range x.order[e.enter : e.exit+1] {
		if x.entries[j].node.Level == level {
			out = append(out, x.entries[j].node.ID)
		}
	}
	return out
}

// IsWithin reports whether id is root itself or one of its descendants.
func (x *Index) IsWithin(id, root string) bool {
	i, ok := x.byID[id]
	if !ok {
		return false
	}
	r, ok := x.byID[root]
	if !ok {
		return false
	}
	return x.entries[r].enter <= x.entries[i].enter && x.entries[i].enter <= x.entries[r].exit
}

// NearestAt returns the closest ancestor-or-self of id at the given level.
func (x *Index) NearestAt(id string, level Level) (string, bool) {
	i, ok := x.byID[id]
	if !ok {
		return "", false
	}
	for ; i != -1; i = x.entries[i].parent {
		if x.entries[i].node.Level == level {
			return x.entries[i].node.ID, true
		}
	}
	return "", false
}

// Parent returns the parent ID, empty for roots.
func (x *Index) Parent(id string) string {
	i, ok := x.byID[id]
	if !ok || x.entries[i].parent == -1 {
		return ""
	}
	return x.entries[x.entries[i].parent].node.ID
}

func (x *Index) Depth(id string) int {
	i, ok := x.byID[id]
	if !ok {
		return -1
	}
	return x.entries[i].depth
}

// Nodes returns every node in preorder.
func (x *Index) Nodes() []Node {
	out := make([]Node, len(x.order))
	for k, i := range x.order {
		out[k] = x.entries[i].node
	}
	return out
}

func (x *Index) ids(indices []int) []string {
	out := make([]string, len(indices))
	for k, i := range indices {
		out[k] = x.entries[i].node.ID
	}
	return out
}
