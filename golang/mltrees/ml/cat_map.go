package ml

import (
	"sort"
)

//initCatMaps builds the sorted category map of every categorical variable and
//precomputes the code of every usable sample. Codes are ranks in the sorted map.
func (td *TrainData) initCatMaps() {
	td.catMaps = make([][]float32, td.nAllVars)
	td.catCodes = make([][]int32, td.nAllVars)

	for vi, t := range td.varTypes {
		if t != VarCategorical {
			continue
		}
		values := make([]float32, 0, len(td.sampleIdx))
		for _, si := range td.sampleIdx {
			if v := td.Value(si, vi); !td.IsMissing(v) {
				values = append(values, v)
			}
		}
		catMap := sortedDistinct(values)

		codes := make([]int32, td.nSamples)
		for si := range codes {
			codes[si] = -1
		}
		for _, si := range td.sampleIdx {
			if v := td.Value(si, vi); !td.IsMissing(v) {
				codes[si] = int32(indexOf(catMap, v))
			}
		}
		td.catMaps[vi] = catMap
		td.catCodes[vi] = codes
	}
}

//sortedDistinct sorts values in place and drops duplicates.
func sortedDistinct(values []float32) []float32 {
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	out := values[:0]
	for i, v := range values {
		if i == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return append([]float32(nil), out...)
}

//indexOf returns the position of v in the sorted slice or -1.
func indexOf(sorted []float32, v float32) int {
	pos := sort.Search(len(sorted), func(i int) bool { return sorted[i] >= v })
	if pos < len(sorted) && sorted[pos] == v {
		return pos
	}
	return -1
}

//CatCount returns the number of categories of variable vi, 0 for ordered variables.
func (td *TrainData) CatCount(vi int) int {
	return len(td.catMaps[vi])
}

//CatMap returns the sorted raw values of categorical variable vi; code k stands for CatMap(vi)[k].
func (td *TrainData) CatMap(vi int) []float32 {
	return td.catMaps[vi]
}

//CatMaps returns the category maps of all variables (nil for ordered ones).
func (td *TrainData) CatMaps() [][]float32 {
	return td.catMaps
}

//CatOfs returns, for every variable, the offset of its map in the concatenation of all category maps
//together with the map length.
func (td *TrainData) CatOfs() [][2]int {
	ofs := make([][2]int, td.nAllVars)
	total := 0
	for vi, m := range td.catMaps {
		ofs[vi] = [2]int{total, total + len(m)}
		total += len(m)
	}
	return ofs
}

//CatCode returns the category code of sample si on variable vi, -1 when missing.
//The variable must be categorical.
func (td *TrainData) CatCode(si, vi int) int {
	return int(td.catCodes[vi][si])
}

//NormCatValues returns the category codes of variable vi across sidx, in subset order.
//Missing cells yield -1.
func (td *TrainData) NormCatValues(vi int, sidx []int) ([]int, error) {
	if vi < 0 || vi >= td.nAllVars {
		return nil, InvalidArgf("variable index %d outside [0, %d)", vi, td.nAllVars)
	}
	if td.varTypes[vi] != VarCategorical {
		return nil, InvalidArgf("variable %d is not categorical", vi)
	}
	codes := make([]int, len(sidx))
	for i, si := range sidx {
		codes[i] = int(td.catCodes[vi][si])
	}
	return codes, nil
}

//SymbolTable assigns float values to string symbols in order of first occurrence,
//so that string categories can be fed through the float sample matrix.
type SymbolTable struct {
	codes   map[string]float32
	symbols []string
}

//NewSymbolTable creates an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{codes: make(map[string]float32)}
}

//Encode returns the value of symbol s, adding it when it is new.
func (st *SymbolTable) Encode(s string) float32 {
	if v, ok := st.codes[s]; ok {
		return v
	}
	v := float32(len(st.symbols))
	st.codes[s] = v
	st.symbols = append(st.symbols, s)
	return v
}

//EncodeAll encodes a column of symbols.
func (st *SymbolTable) EncodeAll(column []string) []float32 {
	out := make([]float32, len(column))
	for i, s := range column {
		out[i] = st.Encode(s)
	}
	return out
}

//Symbol returns the symbol behind value v.
func (st *SymbolTable) Symbol(v float32) (string, bool) {
	i := int(v)
	if float32(i) != v || i < 0 || i >= len(st.symbols) {
		return "", false
	}
	return st.symbols[i], true
}
