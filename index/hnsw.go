package index

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"agentdb/internal/mathutil"
)

// maxLevel caps the layer drawn for any node.
const maxLevel = 16

// Config configures the HNSW graph.
type Config struct {
	Dimensions     int // Vector dimensionality (required)
	M              int // Max bidirectional links per node per layer (default 16)
	EfConstruction int // Candidate list width during build (default 100)
}

func (c Config) withDefaults() Config {
	if c.M == 0 {
		c.M = 16
	}
	if c.EfConstruction == 0 {
		c.EfConstruction = 100
	}
	return c
}

// node is a graph node. conns[l] holds the neighbor ids at layer l,
// for every l in 0..layer. Edges are undirected: each one appears in
// both endpoints' sets.
type node struct {
	id     string
	vector []float32
	layer  int
	conns  []map[string]struct{}
}

// HNSW is a Hierarchical Navigable Small World graph over vectors of
// fixed dimensionality. Distance is 1 - cosine similarity. Not safe for
// concurrent mutation from multiple writers; a single logical writer is
// assumed, reads take the lock shared.
type HNSW struct {
	cfg        Config
	nodes      map[string]*node
	entryPoint string // "" when empty
	maxLayer   int
	mu         sync.RWMutex
}

var _ Index = (*HNSW)(nil)

// NewHNSW creates an empty graph.
func NewHNSW(cfg Config) *HNSW {
	return &HNSW{
		cfg:   cfg.withDefaults(),
		nodes: make(map[string]*node),
	}
}

// Dimensions returns the fixed vector dimensionality.
func (h *HNSW) Dimensions() int { return h.cfg.Dimensions }

// Len returns the number of indexed vectors.
func (h *HNSW) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.nodes)
}

// Insert adds a vector under the given id. Inserting an id that already
// exists replaces its previous vector.
func (h *HNSW) Insert(id string, vector []float32) error {
	if len(vector) != h.cfg.Dimensions {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), h.cfg.Dimensions)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.nodes[id]; exists {
		h.removeLocked(id)
	}

	layer := randomLayer()
	n := &node{
		id:     id,
		vector: vector,
		layer:  layer,
		conns:  make([]map[string]struct{}, layer+1),
	}
	for i := range n.conns {
		n.conns[i] = make(map[string]struct{}, h.cfg.M)
	}

	if len(h.nodes) == 0 {
		h.nodes[id] = n
		h.entryPoint = id
		h.maxLayer = layer
		return nil
	}
	h.nodes[id] = n

	// Greedy descent to a good entry for the top insertion layer.
	curr := h.entryPoint
	for l := h.maxLayer; l > layer; l-- {
		curr = h.greedyStep(vector, curr, l)
	}

	// Connect on every layer the node participates in.
	top := layer
	if h.maxLayer < top {
		top = h.maxLayer
	}
	for l := top; l >= 0; l-- {
		candidates := h.searchLayer(vector, curr, h.cfg.EfConstruction, l)
		m := h.layerCap(l)
		for i := range candidates {
			if i >= m {
				break
			}
			h.connect(n, h.nodes[candidates[i].ID], l)
		}
		if len(candidates) > 0 {
			curr = candidates[0].ID
		}
	}

	if layer > h.maxLayer {
		h.maxLayer = layer
		h.entryPoint = id
	}
	return nil
}

// randomLayer draws a layer with probability proportional to 2^-layer:
// keep flipping a fair coin while it comes up heads.
func randomLayer() int {
	l := 0
	for l < maxLevel && rand.Intn(2) == 0 {
		l++
	}
	return l
}

func (h *HNSW) layerCap(l int) int {
	if l == 0 {
		return h.cfg.M * 2
	}
	return h.cfg.M
}

// connect inserts an undirected edge at layer l and prunes b back to the
// layer cap if the new edge pushed it over.
func (h *HNSW) connect(a, b *node, l int) {
	if a == b || b == nil {
		return
	}
	a.conns[l][b.id] = struct{}{}
	b.conns[l][a.id] = struct{}{}
	if m := h.layerCap(l); len(b.conns[l]) > m {
		h.pruneNode(b, l, m)
	}
}

// pruneNode keeps the m closest neighbors of n at layer l, removing the
// reverse edge of every dropped link so the graph stays undirected.
func (h *HNSW) pruneNode(n *node, l, m int) {
	type link struct {
		id   string
		dist float32
	}
	links := make([]link, 0, len(n.conns[l]))
	for id := range n.conns[l] {
		links = append(links, link{id, mathutil.CosineDistance(n.vector, h.nodes[id].vector)})
	}
	sort.Slice(links, func(i, j int) bool { return links[i].dist < links[j].dist })

	for _, dropped := range links[m:] {
		delete(n.conns[l], dropped.id)
		if other, ok := h.nodes[dropped.id]; ok && l <= other.layer {
			delete(other.conns[l], n.id)
		}
	}
}

// greedyStep is a width-1 local search: follow layer-l edges downhill
// until no neighbor is closer to the query.
func (h *HNSW) greedyStep(query []float32, entry string, l int) string {
	curr := entry
	currDist := mathutil.CosineDistance(query, h.nodes[curr].vector)

	for {
		improved := false
		for nb := range h.nodes[curr].conns[l] {
			d := mathutil.CosineDistance(query, h.nodes[nb].vector)
			if d < currDist {
				curr, currDist = nb, d
				improved = true
			}
		}
		if !improved {
			return curr
		}
	}
}

// searchLayer is a best-first expansion at layer l from entry, keeping a
// bounded result set of up to width entries sorted by ascending distance.
// Expansion stops once the nearest unexplored candidate is farther than
// the worst kept result and the set is full.
func (h *HNSW) searchLayer(query []float32, entry string, width, l int) []SearchResult {
	en := h.nodes[entry]
	d0 := mathutil.CosineDistance(query, en.vector)

	visited := map[string]bool{entry: true}
	candidates := &candidateQueue{}
	candidates.push(candidate{id: entry, dist: d0})
	results := []SearchResult{{ID: entry, Distance: d0}}

	for candidates.len() > 0 {
		curr := candidates.pop()
		if len(results) >= width && curr.dist > results[len(results)-1].Distance {
			break
		}

		for nb := range h.nodes[curr.id].conns[l] {
			if visited[nb] {
				continue
			}
			visited[nb] = true

			d := mathutil.CosineDistance(query, h.nodes[nb].vector)
			if len(results) < width || d < results[len(results)-1].Distance {
				candidates.push(candidate{id: nb, dist: d})
				i := sort.Search(len(results), func(i int) bool { return results[i].Distance > d })
				results = append(results, SearchResult{})
				copy(results[i+1:], results[i:])
				results[i] = SearchResult{ID: nb, Distance: d}
				if len(results) > width {
					results = results[:width]
				}
			}
		}
	}
	return results
}

// Search returns the k nearest neighbors to the query, sorted by
// ascending distance. An empty index returns an empty result.
func (h *HNSW) Search(query []float32, k int) ([]SearchResult, error) {
	if len(query) != h.cfg.Dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), h.cfg.Dimensions)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.entryPoint == "" {
		return nil, nil
	}

	curr := h.entryPoint
	for l := h.maxLayer; l > 0; l-- {
		curr = h.greedyStep(query, curr, l)
	}

	width := h.cfg.EfConstruction
	if k > width {
		width = k
	}
	results := h.searchLayer(query, curr, width, 0)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Remove deletes a vector by id, unlinking it from every neighbor on
// every layer it participated in. Returns false if the id is unknown.
func (h *HNSW) Remove(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.removeLocked(id)
}

func (h *HNSW) removeLocked(id string) bool {
	n, ok := h.nodes[id]
	if !ok {
		return false
	}

	for l, set := range n.conns {
		for nb := range set {
			if other, ok := h.nodes[nb]; ok && l <= other.layer {
				delete(other.conns[l], id)
			}
		}
	}
	delete(h.nodes, id)

	if h.entryPoint == id {
		h.entryPoint = ""
		h.maxLayer = 0
		var best *node
		for _, cand := range h.nodes {
			if best == nil || cand.layer > best.layer {
				best = cand
			}
		}
		if best != nil {
			h.entryPoint = best.id
			h.maxLayer = best.layer
		}
	}
	return true
}

// candidate is an entry in the expansion frontier.
type candidate struct {
	id   string
	dist float32
}

// candidateQueue is a min-heap keyed on distance.
type candidateQueue struct {
	items []candidate
}

func (q *candidateQueue) len() int { return len(q.items) }

func (q *candidateQueue) push(c candidate) {
	q.items = append(q.items, c)
	i := len(q.items) - 1
	for i > 0 {
		parent := (i - 1) / 2
		if q.items[i].dist >= q.items[parent].dist {
			break
		}
		q.items[i], q.items[parent] = q.items[parent], q.items[i]
		i = parent
	}
}

func (q *candidateQueue) pop() candidate {
	c := q.items[0]
	last := len(q.items) - 1
	q.items[0] = q.items[last]
	q.items = q.items[:last]

	i := 0
	for {
		left, right := 2*i+1, 2*i+2
		smallest := i
		if left <= last-1 && q.items[left].dist < q.items[smallest].dist {
			smallest = left
		}
		if right <= last-1 && q.items[right].dist < q.items[smallest].dist {
			smallest = right
		}
		if smallest == i {
			return c
		}
		q.items[i], q.items[smallest] = q.items[smallest], q.items[i]
		i = smallest
	}
}
