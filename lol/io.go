package lol

// Graph persistence. A graph is stored as a single zstd-compressed recordio
// blob: the recordio header carries the format version, the one body record
// carries the gob-encoded CSR arrays, key table, and class blocks. The node
// index is rebuilt on load rather than stored.

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/grailbio/hlamatch/hla"
)

const (
	fileVersionHeader = "hlagraph-version"
	fileVersion       = "HLAGRAPH_V1"
)

type graphFile struct {
	Keys         []NodeKey
	Offsets      []int64
	Targets      []int32
	Weights      []float32
	BlockIndex   []int32
	BlockOffsets []int64
	BlockIDs     []int32
	BlockValues  []hla.Allele
}

// Save writes the graph to path. On any error the partial output is removed,
// so a failed save leaves no artifact behind.
func (g *Graph) Save(ctx context.Context, path string) (err error) {
	recordiozstd.Init()
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create graph", path)
	}
	defer func() {
		if err != nil {
			_ = file.Remove(ctx, path)
		}
	}()
	w := recordio.NewWriter(out.Writer(ctx), recordio.WriterOpts{
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(fileVersionHeader, fileVersion)
	b := bytes.NewBuffer(nil)
	if err = gob.NewEncoder(b).Encode(graphFile{
		Keys:         g.keys,
		Offsets:      g.offsets,
		Targets:      g.targets,
		Weights:      g.weights,
		BlockIndex:   g.blockIndex,
		BlockOffsets: g.blockOffsets,
		BlockIDs:     g.blockIDs,
		BlockValues:  g.blockValues,
	}); err != nil {
		_ = out.Close(ctx)
		return errors.E(err, "encode graph", path)
	}
	w.Append(b.Bytes())
	if err = w.Finish(); err != nil {
		_ = out.Close(ctx)
		return errors.E(err, "write graph", path)
	}
	if err = out.Close(ctx); err != nil {
		return errors.E(err, "close graph", path)
	}
	return nil
}

// Load reads a graph written by Save, validating the format version before
// decoding anything.
func Load(ctx context.Context, path string) (*Graph, error) {
	recordiozstd.Init()
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open graph", path)
	}
	r := recordio.NewScanner(in.Reader(ctx), recordio.ScannerOpts{})
	version := ""
	for _, kv := range r.Header() {
		if kv.Key == fileVersionHeader {
			version, _ = kv.Value.(string)
			break
		}
	}
	if version != fileVersion {
		_ = in.Close(ctx)
		return nil, errors.E(fmt.Sprintf("%s: graph version %q, want %q", path, version, fileVersion))
	}
	if !r.Scan() {
		err := r.Err()
		_ = in.Close(ctx)
		return nil, errors.E(err, "read graph", path)
	}
	var f graphFile
	if err := gob.NewDecoder(bytes.NewReader(r.Get().([]byte))).Decode(&f); err != nil {
		_ = in.Close(ctx)
		return nil, errors.E(err, "decode graph", path)
	}
	once := errors.Once{}
	once.Set(r.Err())
	once.Set(in.Close(ctx))
	if err := once.Err(); err != nil {
		return nil, errors.E(err, "close graph", path)
	}
	g := &Graph{
		keys:         f.Keys,
		offsets:      f.Offsets,
		targets:      f.Targets,
		weights:      f.Weights,
		blockIndex:   f.BlockIndex,
		blockOffsets: f.BlockOffsets,
		blockIDs:     f.BlockIDs,
		blockValues:  f.BlockValues,
	}
	g.index = buildNodeIndex(g.keys)
	return g, nil
}
