// SPDX-License-Identifier: Apache-2.0

package main

/*
#cgo CFLAGS: -I.
#include <stdlib.h>
*/
import "C"

import (
	"context"
	"errors"
	"sync"
	"unsafe"

	"github.com/tarstars/mltrees/golang/mltrees/boost"
	"github.com/tarstars/mltrees/golang/mltrees/dtrees"
	"github.com/tarstars/mltrees/golang/mltrees/ml"
	"github.com/tarstars/mltrees/golang/mltrees/modelfile"
	"github.com/tarstars/mltrees/golang/mltrees/rtrees"
	"gonum.org/v1/gonum/mat"
)

//bridgeModel is what every handle points to.
type bridgeModel interface {
	ml.StatModel
	Forest() (*dtrees.Forest, error)
	Save(filename string) error
}

var (
	handleMu   sync.Mutex
	nextHandle uint64 = 1
	models            = make(map[uint64]bridgeModel)

	lastErrorMu sync.Mutex
	lastError   string
)

func setLastError(err error) {
	lastErrorMu.Lock()
	defer lastErrorMu.Unlock()
	if err != nil {
		lastError = err.Error()
	} else {
		lastError = ""
	}
}

func getLastError() string {
	lastErrorMu.Lock()
	defer lastErrorMu.Unlock()
	return lastError
}

func storeModel(m bridgeModel) uint64 {
	handleMu.Lock()
	defer handleMu.Unlock()
	handle := nextHandle
	models[handle] = m
	nextHandle++
	return handle
}

func fetchModel(handle uint64) (bridgeModel, error) {
	handleMu.Lock()
	defer handleMu.Unlock()
	m, ok := models[handle]
	if !ok {
		return nil, errors.New("invalid model handle")
	}
	return m, nil
}

//export FreeModel
func FreeModel(handle C.ulonglong) {
	handleMu.Lock()
	defer handleMu.Unlock()
	delete(models, uint64(handle))
}

func copyFloats(ptr *C.float, length int) ([]float32, error) {
	if length < 0 {
		return nil, errors.New("negative length")
	}
	if length == 0 {
		return nil, nil
	}
	if ptr == nil {
		return nil, errors.New("null pointer for non-empty slice")
	}
	src := unsafe.Slice((*float32)(unsafe.Pointer(ptr)), length)
	return append([]float32(nil), src...), nil
}

//buildTrainData copies a row-per-sample matrix and its responses. varTypes may be null,
//otherwise it holds cols entries, 0 for ordered and 1 for categorical variables.
func buildTrainData(samplesPtr *C.float, rows, cols C.int, responsesPtr *C.float, varTypesPtr *C.int, categorical C.int, seed C.ulonglong) (*ml.TrainData, error) {
	if rows <= 0 || cols <= 0 {
		return nil, errors.New("rows and cols must be positive")
	}
	samples, err := copyFloats(samplesPtr, int(rows)*int(cols))
	if err != nil {
		return nil, err
	}
	responses, err := copyFloats(responsesPtr, int(rows))
	if err != nil {
		return nil, err
	}

	opts := []ml.TrainDataOption{ml.WithSeed(uint64(seed))}
	if varTypesPtr != nil {
		types := make([]ml.VarType, int(cols))
		for vi, t := range unsafe.Slice((*C.int)(unsafe.Pointer(varTypesPtr)), int(cols)) {
			types[vi] = ml.VarType(t)
		}
		opts = append(opts, ml.WithVarTypes(types))
	}
	if categorical != 0 {
		opts = append(opts, ml.WithResponseType(ml.VarCategorical))
	}
	return ml.NewTrainData(samples, int(rows), int(cols), ml.RowSample, responses, opts...)
}

func trainAndStore(m bridgeModel, data *ml.TrainData, err error) C.ulonglong {
	if err != nil {
		setLastError(err)
		return 0
	}
	if err := m.Train(context.Background(), data, 0); err != nil {
		setLastError(err)
		return 0
	}
	return C.ulonglong(storeModel(m))
}

//export TrainDTrees
func TrainDTrees(
	samplesPtr *C.float,
	rows C.int,
	cols C.int,
	responsesPtr *C.float,
	varTypesPtr *C.int,
	categorical C.int,
	maxDepth C.int,
	minSampleCount C.int,
	cvFolds C.int,
	threadsNum C.int,
	seed C.ulonglong,
) C.ulonglong {
	setLastError(nil)
	data, err := buildTrainData(samplesPtr, rows, cols, responsesPtr, varTypesPtr, categorical, seed)

	model := dtrees.NewDTrees()
	model.MaxDepth = int(maxDepth)
	model.MinSampleCount = int(minSampleCount)
	model.CVFolds = int(cvFolds)
	model.ThreadsNum = max(0, int(threadsNum))
	model.Seed = uint64(seed)
	return trainAndStore(model, data, err)
}

//export TrainBoost
func TrainBoost(
	samplesPtr *C.float,
	rows C.int,
	cols C.int,
	responsesPtr *C.float,
	varTypesPtr *C.int,
	boostType C.int,
	weakCount C.int,
	maxDepth C.int,
	weightTrimRate C.double,
	threadsNum C.int,
	seed C.ulonglong,
) C.ulonglong {
	setLastError(nil)
	data, err := buildTrainData(samplesPtr, rows, cols, responsesPtr, varTypesPtr, 1, seed)

	model := boost.NewBoost()
	model.Type = boost.Type(boostType)
	model.WeakCount = int(weakCount)
	model.MaxDepth = int(maxDepth)
	model.WeightTrimRate = float64(weightTrimRate)
	model.ThreadsNum = max(0, int(threadsNum))
	model.Seed = uint64(seed)
	return trainAndStore(model, data, err)
}

//export TrainRTrees
func TrainRTrees(
	samplesPtr *C.float,
	rows C.int,
	cols C.int,
	responsesPtr *C.float,
	varTypesPtr *C.int,
	categorical C.int,
	maxDepth C.int,
	activeVarCount C.int,
	maxCount C.int,
	epsilon C.double,
	calcVarImportance C.int,
	threadsNum C.int,
	seed C.ulonglong,
) C.ulonglong {
	setLastError(nil)
	data, err := buildTrainData(samplesPtr, rows, cols, responsesPtr, varTypesPtr, categorical, seed)

	model := rtrees.NewRTrees()
	model.MaxDepth = int(maxDepth)
	model.ActiveVarCount = int(activeVarCount)
	model.TermCrit = rtrees.TermCriteria{MaxCount: int(maxCount), Epsilon: float64(epsilon)}
	model.CalculateVarImportance = calcVarImportance != 0
	model.ThreadsNum = max(0, int(threadsNum))
	model.Seed = uint64(seed)
	return trainAndStore(model, data, err)
}

func buildDense(ptr *C.float, rows, cols C.int) (*mat.Dense, error) {
	r, c := int(rows), int(cols)
	if r <= 0 || c <= 0 {
		return nil, errors.New("invalid matrix dimensions")
	}
	values, err := copyFloats(ptr, r*c)
	if err != nil {
		return nil, err
	}
	data := make([]float64, len(values))
	for i, v := range values {
		data[i] = float64(v)
	}
	return mat.NewDense(r, c, data), nil
}

//export Predict
func Predict(
	handle C.ulonglong,
	samplesPtr *C.float,
	rows C.int,
	cols C.int,
	outputPtr *C.float,
	rawOutput C.int,
) C.int {
	setLastError(nil)
	model, err := fetchModel(uint64(handle))
	if err != nil {
		setLastError(err)
		return 1
	}

	samples, err := buildDense(samplesPtr, rows, cols)
	if err != nil {
		setLastError(err)
		return 2
	}

	var flags ml.Flags
	if rawOutput != 0 {
		flags |= ml.RawOutput
	}
	prediction, err := model.Predict(samples, flags)
	if err != nil {
		setLastError(err)
		return 3
	}

	if outputPtr == nil {
		setLastError(errors.New("null output pointer"))
		return 4
	}
	copy(unsafe.Slice((*float32)(unsafe.Pointer(outputPtr)), int(rows)), prediction)
	return 0
}

//export CalcError
func CalcError(handle C.ulonglong, samplesPtr *C.float, rows, cols C.int, responsesPtr *C.float) C.double {
	setLastError(nil)
	model, err := fetchModel(uint64(handle))
	if err != nil {
		setLastError(err)
		return -1
	}

	categorical := C.int(0)
	if model.IsClassifier() {
		categorical = 1
	}
	var varTypes *C.int
	if forest, err := model.Forest(); err == nil && len(forest.Schema.VarTypes) == int(cols) {
		types := make([]C.int, len(forest.Schema.VarTypes))
		for vi, t := range forest.Schema.VarTypes {
			types[vi] = C.int(t)
		}
		varTypes = &types[0]
	}
	data, err := buildTrainData(samplesPtr, rows, cols, responsesPtr, varTypes, categorical, 0)
	if err != nil {
		setLastError(err)
		return -1
	}

	modelError, _, err := ml.CalcError(model, data, false)
	if err != nil {
		setLastError(err)
		return -1
	}
	return C.double(modelError)
}

//export GetVarImportance
func GetVarImportance(handle C.ulonglong, outputPtr *C.double, length C.int) C.int {
	setLastError(nil)
	model, err := fetchModel(uint64(handle))
	if err != nil {
		setLastError(err)
		return 1
	}
	forest, ok := model.(*rtrees.RTrees)
	if !ok {
		setLastError(errors.New("variable importance is only kept by random trees"))
		return 2
	}
	importance, err := forest.VarImportance()
	if err != nil {
		setLastError(err)
		return 2
	}
	if outputPtr == nil || int(length) < len(importance) {
		setLastError(errors.New("output buffer too small"))
		return 3
	}
	copy(unsafe.Slice((*float64)(unsafe.Pointer(outputPtr)), len(importance)), importance)
	return 0
}

//export SaveModel
func SaveModel(handle C.ulonglong, path *C.char) C.int {
	setLastError(nil)
	model, err := fetchModel(uint64(handle))
	if err != nil {
		setLastError(err)
		return 1
	}
	if err := model.Save(C.GoString(path)); err != nil {
		setLastError(err)
		return 2
	}
	return 0
}

//export RenderTrees
func RenderTrees(handle C.ulonglong, prefix, figureType, directory *C.char) C.int {
	setLastError(nil)
	model, err := fetchModel(uint64(handle))
	if err != nil {
		setLastError(err)
		return 1
	}
	goPrefix := C.GoString(prefix)
	goFigureType := C.GoString(figureType)
	goDir := C.GoString(directory)
	if goPrefix == "" {
		goPrefix = "tree"
	}
	if goFigureType == "" {
		goFigureType = "svg"
	}
	if goDir == "" {
		goDir = "."
	}
	forest, err := model.Forest()
	if err != nil {
		setLastError(err)
		return 2
	}
	if err := forest.RenderTrees(goPrefix, goFigureType, goDir); err != nil {
		setLastError(err)
		return 2
	}
	return 0
}

//export LoadModel
func LoadModel(path *C.char) C.ulonglong {
	setLastError(nil)
	goPath := C.GoString(path)

	var probe struct {
		Kind string `json:"kind"`
	}
	if err := modelfile.Load(goPath, &probe); err != nil {
		setLastError(err)
		return 0
	}

	var (
		model bridgeModel
		err   error
	)
	switch probe.Kind {
	case dtrees.Kind:
		model, err = dtrees.LoadDTrees(goPath)
	case boost.Kind:
		model, err = boost.LoadBoost(goPath)
	case rtrees.Kind:
		model, err = rtrees.LoadRTrees(goPath)
	default:
		err = errors.New("unknown model kind " + probe.Kind)
	}
	if err != nil {
		setLastError(err)
		return 0
	}
	return C.ulonglong(storeModel(model))
}

//export GetLastError
func GetLastError() *C.char {
	errStr := getLastError()
	if errStr == "" {
		return nil
	}
	return C.CString(errStr)
}

//export FreeCString
func FreeCString(str *C.char) {
	if str != nil {
		C.free(unsafe.Pointer(str))
	}
}

func main() {}
