// Package lol implements the compact "list of lists" graph that backs the
// donor index. The graph is directed and weighted and holds four disjoint
// node layers (donors, genotypes, classes, subclasses) in one compact ID
// space. It is constructed once through a Builder, immutable afterwards, and
// safe for concurrent readers.
package lol

import (
	"sort"

	"github.com/grailbio/hlamatch/hla"
)

// Layer identifies the node layer of the donor graph.
type Layer uint8

const (
	// DonorLayer nodes carry opaque donor identifiers.
	DonorLayer Layer = iota
	// GenotypeLayer nodes carry ten-allele genotypes.
	GenotypeLayer
	// ClassLayer nodes carry packed Class I / Class II keys.
	ClassLayer
	// SubclassLayer nodes carry packed subclass keys.
	SubclassLayer
)

// NodeKey names a node in one of the four layers. The layer tag is part of
// the key: equal payloads under different tags name distinct nodes, and layer
// membership is a property of the tag rather than a separate set.
type NodeKey struct {
	Layer Layer
	Donor uint64       // DonorLayer
	Geno  hla.Genotype // GenotypeLayer
	Class hla.ClassKey // ClassLayer, SubclassLayer
}

// DonorNode returns the key of a donor node.
func DonorNode(id uint64) NodeKey { return NodeKey{Layer: DonorLayer, Donor: id} }

// GenotypeNode returns the key of a genotype node.
func GenotypeNode(g hla.Genotype) NodeKey { return NodeKey{Layer: GenotypeLayer, Geno: g} }

// ClassNode returns the key of a class node.
func ClassNode(k hla.ClassKey) NodeKey { return NodeKey{Layer: ClassLayer, Class: k} }

// SubclassNode returns the key of a subclass node.
func SubclassNode(k hla.ClassKey) NodeKey { return NodeKey{Layer: SubclassLayer, Class: k} }

// Graph is the finalized read-only graph. Successor lists are stored in CSR
// form (offsets/targets/weights); every class node additionally carries a
// dense, contiguous block of its genotype successors' allele vectors so that
// the matcher's inner loop reads one slice per class.
type Graph struct {
	keys    []NodeKey
	offsets []int64
	targets []int32
	weights []float32
	index   nodeIndex

	// blockIndex maps a class node's compact ID to its dense-block ordinal,
	// or -1 for nodes of other layers. Block b covers blockIDs[off[b]:off[b+1]]
	// and blockValues rows [off[b], off[b+1]), ten alleles per row.
	blockIndex   []int32
	blockOffsets []int64
	blockIDs     []int32
	blockValues  []hla.Allele
}

// NumNodes returns the number of nodes across all layers.
func (g *Graph) NumNodes() int { return len(g.keys) }

// NumEdges returns the number of directed edges.
func (g *Graph) NumEdges() int { return len(g.targets) }

// Key returns the external key of a compact node ID.
func (g *Graph) Key(id int32) NodeKey { return g.keys[id] }

// CompactID returns the compact ID of a node key.
func (g *Graph) CompactID(k NodeKey) (int32, bool) { return g.index.lookup(g.keys, k) }

// Contains reports whether the node key is present.
func (g *Graph) Contains(k NodeKey) bool {
	_, ok := g.index.lookup(g.keys, k)
	return ok
}

// Edges lists one node's outgoing edges. The zero Edges is empty.
type Edges struct {
	g   *Graph
	ids []int32
	w   []float32
}

// Len returns the number of edges.
func (e Edges) Len() int { return len(e.ids) }

// ID returns the i'th successor's compact ID.
func (e Edges) ID(i int) int32 { return e.ids[i] }

// Key returns the i'th successor's external key.
func (e Edges) Key(i int) NodeKey { return e.g.keys[e.ids[i]] }

// Weight returns the i'th edge weight.
func (e Edges) Weight(i int) float32 { return e.w[i] }

// EdgesID returns the outgoing edges of a compact node ID.
func (g *Graph) EdgesID(id int32) Edges {
	lo, hi := g.offsets[id], g.offsets[id+1]
	return Edges{g: g, ids: g.targets[lo:hi], w: g.weights[lo:hi]}
}

// Edges returns the outgoing edges of a node key, or empty edges if the key
// is not present.
func (g *Graph) Edges(k NodeKey) Edges {
	id, ok := g.index.lookup(g.keys, k)
	if !ok {
		return Edges{}
	}
	return g.EdgesID(id)
}

// EdgeWeight returns the weight of the edge from the node with compact ID
// fromID to the node keyed to, or 0 if no such edge exists. Successor lists
// are sorted by target ID, so the lookup is a binary search.
func (g *Graph) EdgeWeight(fromID int32, to NodeKey) float32 {
	toID, ok := g.index.lookup(g.keys, to)
	if !ok {
		return 0
	}
	e := g.EdgesID(fromID)
	i := sort.Search(len(e.ids), func(i int) bool { return e.ids[i] >= toID })
	if i < len(e.ids) && e.ids[i] == toID {
		return e.w[i]
	}
	return 0
}

// ClassNeighbors returns the genotype successors of a class node as two
// parallel dense arrays: the compact genotype IDs and their ten-allele
// vectors packed row-major. Both are precomputed slices of the graph's
// arenas; callers must not modify them. Empty results mean the class is not
// present.
func (g *Graph) ClassNeighbors(k hla.ClassKey) (ids []int32, values []hla.Allele) {
	id, ok := g.index.lookup(g.keys, ClassNode(k))
	if !ok {
		return nil, nil
	}
	return g.classBlock(id)
}

func (g *Graph) classBlock(id int32) (ids []int32, values []hla.Allele) {
	b := g.blockIndex[id]
	if b < 0 {
		return nil, nil
	}
	lo, hi := g.blockOffsets[b], g.blockOffsets[b+1]
	return g.blockIDs[lo:hi], g.blockValues[lo*hla.NumAlleles : hi*hla.NumAlleles]
}

// Neighbors2nd returns the two-hop genotype neighbors of a subclass node,
// i.e. the genotypes reachable via SUBCLASS -> CLASS -> GENOTYPE, as the
// concatenation of the class successors' dense blocks. With a single class
// successor the arena slices are returned directly; otherwise fresh slices
// are allocated. Empty results mean the subclass is not present.
func (g *Graph) Neighbors2nd(k hla.ClassKey) (ids []int32, values []hla.Allele) {
	id, ok := g.index.lookup(g.keys, SubclassNode(k))
	if !ok {
		return nil, nil
	}
	classes := g.EdgesID(id)
	if classes.Len() == 1 {
		return g.classBlock(classes.ID(0))
	}
	for i := 0; i < classes.Len(); i++ {
		bIDs, bValues := g.classBlock(classes.ID(i))
		ids = append(ids, bIDs...)
		values = append(values, bValues...)
	}
	return ids, values
}
