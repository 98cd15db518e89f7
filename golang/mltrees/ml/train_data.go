package ml

import (
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

//SampleLayout tells whether a samples buffer stores one sample per row or per column.
type SampleLayout int

const (
	RowSample SampleLayout = 0
	ColSample SampleLayout = 1
)

//VarType tags a variable as ordered (threshold splits) or categorical (subset splits).
type VarType int

const (
	VarOrdered     VarType = 0
	VarCategorical VarType = 1
)

func (t VarType) String() string {
	if t == VarCategorical {
		return "categorical"
	}
	return "ordered"
}

//DefaultMissingValue marks a missing cell unless WithMissingValue overrides it.
const DefaultMissingValue float32 = math.MaxFloat32

//TrainData is a read-only view over a sample matrix and its responses.
//Subsets are index lists into the matrix; the matrix itself is never copied per subset.
//Only the train/test assignment changes after construction.
type TrainData struct {
	samples  []float32
	layout   SampleLayout
	nSamples int
	nAllVars int

	varIdx    []int
	varTypes  []VarType
	respType  VarType
	responses []float32
	weights   []float32
	missing   float32

	classLabels []float32
	normResp    []int
	catMaps     [][]float32
	catCodes    [][]int32

	sampleIdx []int
	trainIdx  []int
	testIdx   []int

	seed uint64
	rng  *rand.Rand
}

type trainDataConfig struct {
	varTypes  []VarType
	respType  VarType
	varIdx    []int
	sampleIdx []int
	weights   []float32
	missing   float32
	seed      uint64
}

//TrainDataOption customizes NewTrainData.
type TrainDataOption func(*trainDataConfig)

//WithVarTypes sets the type of every input variable (one entry per column of the sample matrix).
func WithVarTypes(types []VarType) TrainDataOption {
	return func(c *trainDataConfig) { c.varTypes = types }
}

//WithResponseType makes the responses categorical (classification) or ordered (regression, the default).
func WithResponseType(t VarType) TrainDataOption {
	return func(c *trainDataConfig) { c.respType = t }
}

//WithVarIdx restricts training to the listed variables.
func WithVarIdx(idx []int) TrainDataOption {
	return func(c *trainDataConfig) { c.varIdx = idx }
}

//WithSampleIdx restricts the usable samples to the listed rows.
func WithSampleIdx(idx []int) TrainDataOption {
	return func(c *trainDataConfig) { c.sampleIdx = idx }
}

//WithSampleWeights assigns a non-negative weight to every sample.
func WithSampleWeights(w []float32) TrainDataOption {
	return func(c *trainDataConfig) { c.weights = w }
}

//WithMissingValue sets the sentinel marking missing cells.
func WithMissingValue(v float32) TrainDataOption {
	return func(c *trainDataConfig) { c.missing = v }
}

//WithSeed seeds the generator used for train/test shuffling.
func WithSeed(seed uint64) TrainDataOption {
	return func(c *trainDataConfig) { c.seed = seed }
}

//NewTrainData wraps a rows x cols samples buffer. With RowSample every row is a sample,
//with ColSample every column is. responses holds one value per sample.
func NewTrainData(samples []float32, rows, cols int, layout SampleLayout, responses []float32, opts ...TrainDataOption) (*TrainData, error) {
	cfg := trainDataConfig{respType: VarOrdered, missing: DefaultMissingValue}
	for _, opt := range opts {
		opt(&cfg)
	}

	if rows <= 0 || cols <= 0 {
		return nil, InvalidArgf("sample matrix must be non-empty, got %dx%d", rows, cols)
	}
	if len(samples) != rows*cols {
		return nil, &DimensionError{What: "samples buffer length", Expected: rows * cols, Actual: len(samples)}
	}
	if layout != RowSample && layout != ColSample {
		return nil, InvalidArgf("unknown sample layout %d", layout)
	}

	td := &TrainData{
		samples:   samples,
		layout:    layout,
		nSamples:  rows,
		nAllVars:  cols,
		respType:  cfg.respType,
		missing:   cfg.missing,
		seed:      cfg.seed,
		rng:       NewRand(cfg.seed),
		responses: responses,
	}
	if layout == ColSample {
		td.nSamples, td.nAllVars = cols, rows
	}

	if len(responses) != td.nSamples {
		return nil, &DimensionError{What: "responses length", Expected: td.nSamples, Actual: len(responses)}
	}

	if err := td.initVars(cfg); err != nil {
		return nil, err
	}
	if err := td.initSamples(cfg); err != nil {
		return nil, err
	}
	if err := td.initResponses(); err != nil {
		return nil, err
	}
	td.initCatMaps()

	td.trainIdx = append([]int(nil), td.sampleIdx...)
	td.testIdx = nil
	return td, nil
}

//NewTrainDataFromDense converts gonum matrices to a TrainData. responses must be a single column or row.
func NewTrainDataFromDense(samples *mat.Dense, layout SampleLayout, responses mat.Matrix, opts ...TrainDataOption) (*TrainData, error) {
	rows, cols := samples.Dims()
	buf := make([]float32, 0, rows*cols)
	for p := 0; p < rows; p++ {
		for q := 0; q < cols; q++ {
			buf = append(buf, float32(samples.At(p, q)))
		}
	}

	rr, rc := responses.Dims()
	if rr != 1 && rc != 1 {
		return nil, InvalidArgf("responses must be a vector, got %dx%d", rr, rc)
	}
	resp := make([]float32, 0, rr*rc)
	for p := 0; p < rr; p++ {
		for q := 0; q < rc; q++ {
			resp = append(resp, float32(responses.At(p, q)))
		}
	}
	return NewTrainData(buf, rows, cols, layout, resp, opts...)
}

func (td *TrainData) initVars(cfg trainDataConfig) error {
	td.varTypes = make([]VarType, td.nAllVars)
	if cfg.varTypes != nil {
		if len(cfg.varTypes) != td.nAllVars {
			return &DimensionError{What: "var types length", Expected: td.nAllVars, Actual: len(cfg.varTypes)}
		}
		for vi, t := range cfg.varTypes {
			if t != VarOrdered && t != VarCategorical {
				return InvalidArgf("variable %d has unknown type %d", vi, t)
			}
		}
		copy(td.varTypes, cfg.varTypes)
	}

	if cfg.varIdx == nil {
		td.varIdx = identity(td.nAllVars)
		return nil
	}
	if len(cfg.varIdx) == 0 {
		return InvalidArgf("empty variable subset")
	}
	seen := make([]bool, td.nAllVars)
	td.varIdx = make([]int, 0, len(cfg.varIdx))
	for _, vi := range cfg.varIdx {
		if vi < 0 || vi >= td.nAllVars {
			return InvalidArgf("variable index %d outside [0, %d)", vi, td.nAllVars)
		}
		if seen[vi] {
			return InvalidArgf("variable index %d listed twice", vi)
		}
		seen[vi] = true
		td.varIdx = append(td.varIdx, vi)
	}
	sort.Ints(td.varIdx)
	return nil
}

func (td *TrainData) initSamples(cfg trainDataConfig) error {
	if cfg.sampleIdx == nil {
		td.sampleIdx = identity(td.nSamples)
	} else {
		td.sampleIdx = make([]int, len(cfg.sampleIdx))
		for i, si := range cfg.sampleIdx {
			if si < 0 || si >= td.nSamples {
				return InvalidArgf("sample index %d outside [0, %d)", si, td.nSamples)
			}
			td.sampleIdx[i] = si
		}
	}

	if cfg.weights != nil {
		if len(cfg.weights) != td.nSamples {
			return &DimensionError{What: "sample weights length", Expected: td.nSamples, Actual: len(cfg.weights)}
		}
		for si, w := range cfg.weights {
			if w < 0 || math.IsNaN(float64(w)) {
				return InvalidArgf("sample %d has invalid weight %g", si, w)
			}
		}
		td.weights = cfg.weights
	}
	return nil
}

func (td *TrainData) initResponses() error {
	if td.respType != VarOrdered && td.respType != VarCategorical {
		return InvalidArgf("unknown response type %d", td.respType)
	}
	for _, si := range td.sampleIdx {
		if td.IsMissing(td.responses[si]) {
			return InvalidArgf("response of sample %d is missing", si)
		}
	}
	if td.respType != VarCategorical {
		return nil
	}

	labels := make([]float32, 0)
	for _, si := range td.sampleIdx {
		labels = append(labels, td.responses[si])
	}
	td.classLabels = sortedDistinct(labels)

	td.normResp = make([]int, td.nSamples)
	for si := range td.normResp {
		td.normResp[si] = -1
	}
	for _, si := range td.sampleIdx {
		td.normResp[si] = indexOf(td.classLabels, td.responses[si])
	}
	return nil
}

//identity returns [0, 1, ..., n-1].
func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

//Layout returns the layout of the wrapped buffer.
func (td *TrainData) Layout() SampleLayout { return td.layout }

//NSamples returns the number of usable samples.
func (td *TrainData) NSamples() int { return len(td.sampleIdx) }

//NTrainSamples returns the size of the train subset.
func (td *TrainData) NTrainSamples() int { return len(td.trainIdx) }

//NTestSamples returns the size of the test subset.
func (td *TrainData) NTestSamples() int { return len(td.testIdx) }

//NVars returns the number of active variables.
func (td *TrainData) NVars() int { return len(td.varIdx) }

//NAllVars returns the number of columns every sample has.
func (td *TrainData) NAllVars() int { return td.nAllVars }

//VarIdx returns the active variables.
func (td *TrainData) VarIdx() []int { return td.varIdx }

//VarType returns the type of variable vi.
func (td *TrainData) VarType(vi int) VarType { return td.varTypes[vi] }

//VarTypes returns the types of all variables.
func (td *TrainData) VarTypes() []VarType { return td.varTypes }

//ResponseType returns the response type.
func (td *TrainData) ResponseType() VarType { return td.respType }

//IsClassification reports whether responses are class labels.
func (td *TrainData) IsClassification() bool { return td.respType == VarCategorical }

//ClassCount returns the number of distinct class labels (0 for regression).
func (td *TrainData) ClassCount() int { return len(td.classLabels) }

//ClassLabels returns the sorted class labels; class index i stands for ClassLabels()[i].
func (td *TrainData) ClassLabels() []float32 { return td.classLabels }

//MissingValue returns the missing-cell sentinel.
func (td *TrainData) MissingValue() float32 { return td.missing }

//Seed returns the seed the shuffling generator was created with.
func (td *TrainData) Seed() uint64 { return td.seed }

//IsMissing reports whether v marks a missing cell. NaN is always missing.
func (td *TrainData) IsMissing(v float32) bool {
	return v == td.missing || math.IsNaN(float64(v))
}

//Value returns the raw value of variable vi for the sample at buffer position si.
func (td *TrainData) Value(si, vi int) float32 {
	if td.layout == RowSample {
		return td.samples[si*td.nAllVars+vi]
	}
	return td.samples[vi*td.nSamples+si]
}

//Values returns the raw values of variable vi across sidx, in subset order.
func (td *TrainData) Values(vi int, sidx []int) []float32 {
	values := make([]float32, len(sidx))
	for i, si := range sidx {
		values[i] = td.Value(si, vi)
	}
	return values
}

//Sample copies all variables of sample si into buf, growing it when needed.
func (td *TrainData) Sample(si int, buf []float32) []float32 {
	if cap(buf) < td.nAllVars {
		buf = make([]float32, td.nAllVars)
	}
	buf = buf[:td.nAllVars]
	for vi := range buf {
		buf[vi] = td.Value(si, vi)
	}
	return buf
}

//Responses returns the response of every sample in the buffer.
func (td *TrainData) Responses() []float32 { return td.responses }

//NormCatResponses returns the class index of every sample, -1 outside the usable set.
func (td *TrainData) NormCatResponses() []int { return td.normResp }

//Weight returns the weight of sample si.
func (td *TrainData) Weight(si int) float32 {
	if td.weights == nil {
		return 1
	}
	return td.weights[si]
}

//SampleWeights returns the weights of all samples, nil when unweighted.
func (td *TrainData) SampleWeights() []float32 { return td.weights }

//SampleIdx returns the usable samples.
func (td *TrainData) SampleIdx() []int { return td.sampleIdx }

//TrainSampleIdx returns the train subset.
func (td *TrainData) TrainSampleIdx() []int { return td.trainIdx }

//TestSampleIdx returns the test subset.
func (td *TrainData) TestSampleIdx() []int { return td.testIdx }

//TrainResponses returns the responses of the train subset.
func (td *TrainData) TrainResponses() []float32 { return td.gather(td.trainIdx) }

//TestResponses returns the responses of the test subset.
func (td *TrainData) TestResponses() []float32 { return td.gather(td.testIdx) }

func (td *TrainData) gather(sidx []int) []float32 {
	out := make([]float32, len(sidx))
	for i, si := range sidx {
		out[i] = td.responses[si]
	}
	return out
}

//TrainSamples returns the train subset as a row-per-sample matrix with every variable.
func (td *TrainData) TrainSamples() *mat.Dense { return td.dense(td.trainIdx) }

//TestSamples returns the test subset as a row-per-sample matrix with every variable.
func (td *TrainData) TestSamples() *mat.Dense { return td.dense(td.testIdx) }

func (td *TrainData) dense(sidx []int) *mat.Dense {
	if len(sidx) == 0 {
		return nil
	}
	m := mat.NewDense(len(sidx), td.nAllVars, nil)
	for p, si := range sidx {
		for vi := 0; vi < td.nAllVars; vi++ {
			m.Set(p, vi, float64(td.Value(si, vi)))
		}
	}
	return m
}
