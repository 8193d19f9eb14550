package bnb

import (
	"strconv"

	"q.log/lpsolver/tableau"
)

// Fathom reasons.
const (
	ReasonInfeasible   = "infeasible"
	ReasonUnbounded    = "unbounded"
	ReasonBound        = "bound dominated"
	ReasonInteger      = "integer feasible"
	ReasonIncumbent    = "integer feasible, incumbent updated"
	ReasonOverCapacity = "over capacity"
)

// Node is one sub-problem of a search tree. Nodes refer to each other by
// index into the tree's arena.
type Node struct {
	ID       int
	Label    string // "1", "1.1", "1.2", ...
	Parent   int    // -1 for the root
	Children []int
	Depth    int

	// SubProblem is the tableau handed to the LP solver; Tableau is its
	// solved snapshot.
	SubProblem *tableau.Tableau
	Tableau    *tableau.Tableau

	// BranchVar and BranchValue describe the split applied to the parent,
	// Constraint renders it ("x1 <= 2").
	BranchVar   int
	BranchValue float64
	Constraint  string

	Status    tableau.Status
	Objective float64
	Solution  []float64

	Fathomed     bool
	FathomReason string

	// Knapsack nodes only.
	Fixed  []Decision
	Bound  float64
	Weight float64
}

// Fathom marks the node as pruned.
func (n *Node) Fathom(reason string) {
	n.Fathomed = true
	n.FathomReason = reason
}

// IsRoot reports whether n has no parent.
func (n *Node) IsRoot() bool { return n.Parent < 0 }

// Tree is an arena of nodes. The root is node 0.
type Tree struct {
	nodes []*Node
}

// NewTree returns a tree holding only a root labelled "1".
func NewTree() *Tree {
	t := &Tree{}
	t.nodes = append(t.nodes, &Node{ID: 0, Label: "1", Parent: -1, BranchVar: -1})
	return t
}

// Add appends a child of parent. The child's label extends the parent's
// with its position among the siblings.
func (t *Tree) Add(parent int) *Node {
	p := t.nodes[parent]
	n := &Node{
		ID:        len(t.nodes),
		Parent:    parent,
		Depth:     p.Depth + 1,
		BranchVar: -1,
	}
	n.Label = p.Label + "." + strconv.Itoa(len(p.Children)+1)
	p.Children = append(p.Children, n.ID)
	t.nodes = append(t.nodes, n)
	return n
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.nodes[0] }

// Node returns the node with the given ID, or nil.
func (t *Tree) Node(id int) *Node {
	if id < 0 || id >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// Len returns the number of nodes created.
func (t *Tree) Len() int { return len(t.nodes) }

// Nodes returns the nodes in creation order.
func (t *Tree) Nodes() []*Node { return append([]*Node(nil), t.nodes...) }

// Walk visits the nodes depth first, parents before children.
func (t *Tree) Walk(fn func(*Node)) {
	var visit func(id int)
	visit = func(id int) {
		n := t.nodes[id]
		fn(n)
		for _, c := range n.Children {
			visit(c)
		}
	}
	visit(0)
}

// Path returns the IDs from the root to node id.
func (t *Tree) Path(id int) []int {
	var path []int
	for n := t.Node(id); n != nil; n = t.Node(n.Parent) {
		path = append([]int{n.ID}, path...)
		if n.IsRoot() {
			break
		}
	}
	return path
}
