// Package block describes the decomposition of a program's control-flow
// graph into blocks, each of which is analyzed by one worker.
package block

import (
	"fmt"
	"slices"
	"sort"
)

// Node is one block of the decomposition. Nodes are created once, before
// any worker starts, and are never mutated afterwards.
type Node struct {
	ID           string
	Start        int   // entry location
	Last         int   // exit location
	Locations    []int // locations contained in the block, Start and Last included
	Successors   []string
	Predecessors []string
	Root         bool

	// Reference domain annotations.
	Guard string // formula that must hold to traverse the block; empty means True
	Error bool   // Last is an error location
}

// Empty reports whether the block contains no locations.
func (n *Node) Empty() bool {
	return len(n.Locations) == 0
}

func (n *Node) HasSuccessor(id string) bool {
	return slices.Contains(n.Successors, id)
}

func (n *Node) HasPredecessor(id string) bool {
	return slices.Contains(n.Predecessors, id)
}

// ValidateRoot checks the shape required of the unique entry block.
func (n *Node) ValidateRoot() error {
	if len(n.Predecessors) != 0 {
		return fmt.Errorf("root block %s has predecessors %v", n.ID, n.Predecessors)
	}
	if len(n.Locations) != 0 {
		return fmt.Errorf("root block %s contains locations %v", n.ID, n.Locations)
	}
	if n.Last != n.Start {
		return fmt.Errorf("root block %s ends at %d but starts at %d", n.ID, n.Last, n.Start)
	}
	return nil
}

// Graph is a validated set of blocks.
type Graph struct {
	nodes map[string]*Node
	order []string
	root  string
}

// NewGraph links predecessors and validates the decomposition. Exactly one
// node must be flagged Root, and every successor edge must connect the
// exit location of one block to the entry location of the next.
func NewGraph(nodes []*Node) (*Graph, error) {
	g := &Graph{nodes: make(map[string]*Node, len(nodes))}
	for _, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("block without id")
		}
		if _, dup := g.nodes[n.ID]; dup {
			return nil, fmt.Errorf("duplicate block id %s", n.ID)
		}
		if n.Root {
			if g.root != "" {
				return nil, fmt.Errorf("blocks %s and %s are both marked root", g.root, n.ID)
			}
			g.root = n.ID
		}
		n.Predecessors = nil
		g.nodes[n.ID] = n
		g.order = append(g.order, n.ID)
	}
	if g.root == "" {
		return nil, fmt.Errorf("no root block")
	}
	sort.Strings(g.order)
	for _, id := range g.order {
		n := g.nodes[id]
		for _, s := range n.Successors {
			succ, ok := g.nodes[s]
			if !ok {
				return nil, fmt.Errorf("block %s: unknown successor %s", n.ID, s)
			}
			if succ.Root {
				return nil, fmt.Errorf("block %s: root block %s cannot be a successor", n.ID, s)
			}
			if succ.Start != n.Last {
				return nil, fmt.Errorf("block %s ends at %d but successor %s starts at %d", n.ID, n.Last, s, succ.Start)
			}
			if !succ.HasPredecessor(n.ID) {
				succ.Predecessors = append(succ.Predecessors, n.ID)
			}
		}
	}
	for _, id := range g.order {
		sort.Strings(g.nodes[id].Predecessors)
	}
	if err := g.Root().ValidateRoot(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) Root() *Node {
	return g.nodes[g.root]
}

func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all blocks ordered by id.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// IDs returns all block ids in sorted order.
func (g *Graph) IDs() []string {
	return slices.Clone(g.order)
}

func (g *Graph) Len() int {
	return len(g.order)
}

// Addressees lists the blocks a message sent by source towards location
// target would be accepted by: successors starting at target when forward
// is true, predecessors ending at target otherwise.
func (g *Graph) Addressees(source string, target int, forward bool) []string {
	n, ok := g.nodes[source]
	if !ok {
		return nil
	}
	var out []string
	if forward {
		for _, s := range n.Successors {
			if g.nodes[s].Start == target {
				out = append(out, s)
			}
		}
		return out
	}
	for _, p := range n.Predecessors {
		if g.nodes[p].Last == target {
			out = append(out, p)
		}
	}
	return out
}
