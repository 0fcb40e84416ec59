package lol

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hlamatch/hla"
)

type edge struct {
	from, to NodeKey
	weight   float32
}

// Builder accumulates a growable edge list and finalizes it into a Graph.
// It is not safe for concurrent use; the Graph it builds is.
type Builder struct {
	edges []edge
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder { return &Builder{} }

// AddEdge records a directed weighted edge. Node keys carry their own layer
// tags, so the four-layer partition needs no separate registration.
func (b *Builder) AddEdge(from, to NodeKey, weight float32) {
	b.edges = append(b.edges, edge{from: from, to: to, weight: weight})
}

// NumEdges returns the number of edges recorded so far.
func (b *Builder) NumEdges() int { return len(b.edges) }

// Build finalizes the edge list into a read-only Graph: node keys are
// interned into compact IDs in first-appearance order, successor lists are
// packed into CSR arrays sorted by target ID, and every class node gets a
// dense block of its genotype successors' allele vectors.
func (b *Builder) Build() (*Graph, error) {
	if len(b.edges) == 0 {
		return nil, errors.E("lol: no edges to build")
	}

	// Intern node keys. First-appearance order keeps compact IDs
	// deterministic for a given edge emission order.
	intern := make(map[NodeKey]int32, len(b.edges))
	var keys []NodeKey
	internKey := func(k NodeKey) int32 {
		if id, ok := intern[k]; ok {
			return id
		}
		id := int32(len(keys))
		intern[k] = id
		keys = append(keys, k)
		return id
	}
	type idEdge struct {
		from, to int32
		weight   float32
	}
	idEdges := make([]idEdge, len(b.edges))
	for i, e := range b.edges {
		idEdges[i] = idEdge{from: internKey(e.from), to: internKey(e.to), weight: e.weight}
	}

	// CSR: count out-degrees, prefix-sum, fill, then sort each row by target.
	n := len(keys)
	offsets := make([]int64, n+1)
	for _, e := range idEdges {
		offsets[e.from+1]++
	}
	for i := 0; i < n; i++ {
		offsets[i+1] += offsets[i]
	}
	targets := make([]int32, len(idEdges))
	weights := make([]float32, len(idEdges))
	cursor := make([]int64, n)
	copy(cursor, offsets[:n])
	for _, e := range idEdges {
		targets[cursor[e.from]] = e.to
		weights[cursor[e.from]] = e.weight
		cursor[e.from]++
	}
	for i := 0; i < n; i++ {
		lo, hi := offsets[i], offsets[i+1]
		row := newRowSorter(targets[lo:hi], weights[lo:hi])
		sort.Sort(row)
		for j := 1; j < row.Len(); j++ {
			if row.ids[j] == row.ids[j-1] {
				return nil, errors.E(fmt.Sprintf("lol: duplicate edge %v -> %v", keys[i], keys[row.ids[j]]))
			}
		}
	}

	g := &Graph{
		keys:    keys,
		offsets: offsets,
		targets: targets,
		weights: weights,
	}
	g.index = buildNodeIndex(keys)
	buildClassBlocks(g)
	return g, nil
}

// buildClassBlocks precomputes, for every class node, the dense parallel
// arrays of its genotype successors (compact IDs and row-major allele
// vectors). This is the critical read-path layout: a class lookup at query
// time is two slice expressions.
func buildClassBlocks(g *Graph) {
	n := len(g.keys)
	g.blockIndex = make([]int32, n)
	nGenos := 0
	nBlocks := 0
	for id := 0; id < n; id++ {
		if g.keys[id].Layer != ClassLayer {
			g.blockIndex[id] = -1
			continue
		}
		g.blockIndex[id] = int32(nBlocks)
		nBlocks++
		nGenos += int(g.offsets[id+1] - g.offsets[id])
	}
	g.blockOffsets = make([]int64, 1, nBlocks+1)
	g.blockIDs = make([]int32, 0, nGenos)
	g.blockValues = make([]hla.Allele, 0, nGenos*hla.NumAlleles)
	for id := 0; id < n; id++ {
		if g.blockIndex[id] < 0 {
			continue
		}
		e := g.EdgesID(int32(id))
		for i := 0; i < e.Len(); i++ {
			gid := e.ID(i)
			g.blockIDs = append(g.blockIDs, gid)
			geno := g.keys[gid].Geno
			g.blockValues = append(g.blockValues, geno[:]...)
		}
		g.blockOffsets = append(g.blockOffsets, int64(len(g.blockIDs)))
	}
}

// rowSorter sorts one CSR row's targets ascending, moving weights in step.
type rowSorter struct {
	ids []int32
	w   []float32
}

func newRowSorter(ids []int32, w []float32) *rowSorter { return &rowSorter{ids: ids, w: w} }

func (r *rowSorter) Len() int           { return len(r.ids) }
func (r *rowSorter) Less(i, j int) bool { return r.ids[i] < r.ids[j] }
func (r *rowSorter) Swap(i, j int) {
	r.ids[i], r.ids[j] = r.ids[j], r.ids[i]
	r.w[i], r.w[j] = r.w[j], r.w[i]
}
