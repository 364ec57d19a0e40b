package block

import (
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

// Spec is the TOML form of a block decomposition.
type Spec struct {
	Blocks []NodeSpec `toml:"block"`
}

type NodeSpec struct {
	ID         string   `toml:"id"`
	Start      int      `toml:"start"`
	Last       int      `toml:"last"`
	Locations  []int    `toml:"locations,omitempty"`
	Successors []string `toml:"successors,omitempty"`
	Root       bool     `toml:"root,omitempty"`
	Guard      string   `toml:"guard,omitempty"`
	Error      bool     `toml:"error,omitempty"`
}

func parseSpec(r io.Reader) (*Spec, error) {
	var out Spec
	_, err := toml.NewDecoder(r).Decode(&out)
	return &out, err
}

// ParseGraph decodes and validates a TOML block decomposition.
func ParseGraph(r io.Reader) (*Graph, error) {
	s, err := parseSpec(r)
	if err != nil {
		return nil, err
	}
	return s.Build()
}

func LoadGraphFromFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseGraph(f)
}

// Build turns the spec into a validated Graph.
func (s *Spec) Build() (*Graph, error) {
	nodes := make([]*Node, 0, len(s.Blocks))
	for _, b := range s.Blocks {
		nodes = append(nodes, &Node{
			ID:         b.ID,
			Start:      b.Start,
			Last:       b.Last,
			Locations:  append([]int(nil), b.Locations...),
			Successors: append([]string(nil), b.Successors...),
			Root:       b.Root,
			Guard:      b.Guard,
			Error:      b.Error,
		})
	}
	return NewGraph(nodes)
}
