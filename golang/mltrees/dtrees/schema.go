package dtrees

import (
	"math"
	"sort"

	"github.com/tarstars/mltrees/golang/mltrees/ml"
)

//Schema is what a trained model remembers about its training data: variable types,
//category maps, class labels and the missing-value sentinel.
type Schema struct {
	VarCount    int          `json:"var_count"`
	VarTypes    []ml.VarType `json:"var_types"`
	CatMaps     [][]float32  `json:"cat_maps"`
	ClassLabels []float32    `json:"class_labels"`
	Missing     float32      `json:"missing"`
	Classifier  bool         `json:"classifier"`
}

//SchemaOf captures the schema of data.
func SchemaOf(data *ml.TrainData) Schema {
	catMaps := make([][]float32, data.NAllVars())
	for vi := range catMaps {
		if m := data.CatMap(vi); m != nil {
			catMaps[vi] = append([]float32(nil), m...)
		}
	}
	return Schema{
		VarCount:    data.NAllVars(),
		VarTypes:    append([]ml.VarType(nil), data.VarTypes()...),
		CatMaps:     catMaps,
		ClassLabels: append([]float32(nil), data.ClassLabels()...),
		Missing:     data.MissingValue(),
		Classifier:  data.IsClassification(),
	}
}

//IsMissing reports whether v marks a missing cell.
func (s *Schema) IsMissing(v float32) bool {
	return v == s.Missing || math.IsNaN(float64(v))
}

//CatCode returns the code of raw value v of categorical variable vi, -1 for values never seen in training.
func (s *Schema) CatCode(vi int, v float32) int {
	m := s.CatMaps[vi]
	pos := sort.Search(len(m), func(i int) bool { return m[i] >= v })
	if pos < len(m) && m[pos] == v {
		return pos
	}
	return -1
}

//ClassCount returns the number of classes, 0 for regression.
func (s *Schema) ClassCount() int {
	return len(s.ClassLabels)
}

func (s *Schema) checkSample(sample []float32) error {
	if len(sample) != s.VarCount {
		return &ml.DimensionError{What: "sample length", Expected: s.VarCount, Actual: len(sample)}
	}
	return nil
}
