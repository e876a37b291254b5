package pipeline

import (
	"math"

	"github.com/sirupsen/logrus"
)

const (
	// fewer vectors than this are projected linearly
	MinManifoldSamples = 5
	// added to the range of the linear projection so constant axes do not divide by zero
	linearEpsilon = 1e-10
)

/*
Reducer maps high-dimensional vectors to dims coordinates each
*/
type Reducer interface {
	Reduce(data [][]float64, dims int) ([][]float64, error)
}

/*
Vector is the embedding of the row with the same ID
*/
type Vector struct {
	ID     string
	Values []float64
}

/*
Method names the path the projection stage took
*/
type Method string

const (
	MethodNone     Method = "none"
	MethodManifold Method = "manifold"
	MethodLinear   Method = "linear"
	MethodRaw      Method = "raw"
)

/*
Project writes coordinates for vectors into the matching rows of table.

With at least MinManifoldSamples vectors the reducer lays them out and every axis is rescaled
into [0, 1]. With fewer, the first Dims components are min-max normalized directly. When the
reducer fails, the first Dims components are used as they are. Vectors whose id has no row are
skipped; rows without a vector keep their coordinates. A nil reducer always takes the linear
path.
*/
func Project(table *Table, vectors []Vector, reducer Reducer, logger logrus.FieldLogger) Method {
	if table == nil || len(vectors) == 0 {
		return MethodNone
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	dims := table.Dims

	if reducer == nil && len(vectors) >= MinManifoldSamples {
		logger.WithField("vectors", len(vectors)).Warn("No reducer configured, using linear projection")
	}
	if len(vectors) < MinManifoldSamples || reducer == nil {
		writeCoords(table, vectors, linear(vectors, dims))
		return MethodLinear
	}

	data := make([][]float64, len(vectors))
	for i, v := range vectors {
		data[i] = v.Values
	}
	layout, err := reducer.Reduce(data, dims)
	if err != nil {
		logger.WithError(err).WithField("vectors", len(vectors)).Warn("Reduction failed, using raw components")
		writeCoords(table, vectors, raw(vectors, dims))
		return MethodRaw
	}

	writeCoords(table, vectors, rescale(layout, dims))
	return MethodManifold
}

/*
raw takes the first dims components of every vector; shorter vectors leave the rest at zero
*/
func raw(vectors []Vector, dims int) [][]float64 {
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		out[i] = make([]float64, dims)
		copy(out[i], v.Values)
	}
	return out
}

/*
linear normalizes the first dims components per axis: (v - min) / (max - min + eps)
*/
func linear(vectors []Vector, dims int) [][]float64 {
	out := raw(vectors, dims)
	for d := 0; d < dims; d++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i, v := range vectors {
			if d < len(v.Values) {
				lo = math.Min(lo, out[i][d])
				hi = math.Max(hi, out[i][d])
			}
		}
		if math.IsInf(lo, 1) {
			continue
		}
		for i, v := range vectors {
			if d < len(v.Values) {
				out[i][d] = (out[i][d] - lo) / (hi - lo + linearEpsilon)
			}
		}
	}
	return out
}

/*
rescale maps every axis independently into [0, 1]; a constant axis becomes 0
*/
func rescale(layout [][]float64, dims int) [][]float64 {
	out := make([][]float64, len(layout))
	for i := range out {
		out[i] = make([]float64, dims)
		copy(out[i], layout[i])
	}
	for d := 0; d < dims; d++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, p := range out {
			lo = math.Min(lo, p[d])
			hi = math.Max(hi, p[d])
		}
		span := hi - lo
		for _, p := range out {
			if span <= 0 {
				p[d] = 0
				continue
			}
			p[d] = math.Min(1, math.Max(0, (p[d]-lo)/span))
		}
	}
	return out
}

// placeholder ids are matched to their rows in order since they share one id
func writeCoords(table *Table, vectors []Vector, coords [][]float64) {
	next := 0
	for i, v := range vectors {
		var pos int
		if v.ID == UnknownID {
			if next >= len(table.placeholders) {
				continue
			}
			pos = table.placeholders[next]
			next++
		} else {
			var ok bool
			if pos, ok = table.Lookup(v.ID); !ok {
				continue
			}
		}
		copy(table.Rows[pos].Coords, coords[i])
	}
}
