package index

import (
	"encoding/json"
	"fmt"
	"sort"
)

// graphFile is the wire form of the graph. Node connections serialize as
// [layer, [neighborIds]] pairs.
type graphFile struct {
	Dimensions     int         `json:"dimensions"`
	M              int         `json:"M"`
	EfConstruction int         `json:"efConstruction"`
	MaxLayer       int         `json:"maxLayer"`
	EntryPoint     string      `json:"entryPoint"`
	Nodes          []graphNode `json:"nodes"`
}

type graphNode struct {
	ID          string          `json:"id"`
	Vector      []float32       `json:"vector"`
	Connections []layerNeighbor `json:"connections"`
}

type layerNeighbor struct {
	Layer     int
	Neighbors []string
}

func (c layerNeighbor) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{c.Layer, c.Neighbors})
}

func (c *layerNeighbor) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("index: connections entry has %d elements, want 2", len(pair))
	}
	if err := json.Unmarshal(pair[0], &c.Layer); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &c.Neighbors)
}

// Marshal serializes the graph topology as JSON. Output is deterministic:
// nodes and neighbor lists are sorted by id.
func (h *HNSW) Marshal() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	file := graphFile{
		Dimensions:     h.cfg.Dimensions,
		M:              h.cfg.M,
		EfConstruction: h.cfg.EfConstruction,
		MaxLayer:       h.maxLayer,
		EntryPoint:     h.entryPoint,
		Nodes:          make([]graphNode, 0, len(h.nodes)),
	}

	ids := make([]string, 0, len(h.nodes))
	for id := range h.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		n := h.nodes[id]
		gn := graphNode{
			ID:          n.id,
			Vector:      n.vector,
			Connections: make([]layerNeighbor, 0, len(n.conns)),
		}
		for l, set := range n.conns {
			neighbors := make([]string, 0, len(set))
			for nb := range set {
				neighbors = append(neighbors, nb)
			}
			sort.Strings(neighbors)
			gn.Connections = append(gn.Connections, layerNeighbor{Layer: l, Neighbors: neighbors})
		}
		file.Nodes = append(file.Nodes, gn)
	}

	return json.Marshal(file)
}

// Unmarshal restores a graph from its JSON form, replacing any existing
// state including the configuration.
func (h *HNSW) Unmarshal(data []byte) error {
	var file graphFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("index: decode graph: %w", err)
	}

	nodes := make(map[string]*node, len(file.Nodes))
	for _, gn := range file.Nodes {
		top := 0
		for _, c := range gn.Connections {
			if c.Layer > top {
				top = c.Layer
			}
		}
		n := &node{
			id:     gn.ID,
			vector: gn.Vector,
			layer:  top,
			conns:  make([]map[string]struct{}, top+1),
		}
		for i := range n.conns {
			n.conns[i] = make(map[string]struct{})
		}
		for _, c := range gn.Connections {
			if c.Layer < 0 {
				return fmt.Errorf("index: node %s has negative layer %d", gn.ID, c.Layer)
			}
			for _, nb := range c.Neighbors {
				n.conns[c.Layer][nb] = struct{}{}
			}
		}
		nodes[gn.ID] = n
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg = Config{
		Dimensions:     file.Dimensions,
		M:              file.M,
		EfConstruction: file.EfConstruction,
	}.withDefaults()
	h.nodes = nodes
	h.entryPoint = file.EntryPoint
	h.maxLayer = file.MaxLayer
	return nil
}
