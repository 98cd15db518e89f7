package ml

import (
	"fmt"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

//ReadNpy reads a float64 npy array. One-dimensional arrays become a single column.
func ReadNpy(fileName string) (denseMat *mat.Dense, err error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("read npy header of %s: %w", fileName, err)
	}

	shape := r.Header.Descr.Shape
	if len(shape) == 1 {
		var data []float64
		if err = r.Read(&data); err != nil {
			return nil, fmt.Errorf("read npy body of %s: %w", fileName, err)
		}
		return mat.NewDense(len(data), 1, data), nil
	}

	denseMat = &mat.Dense{}
	if err = r.Read(denseMat); err != nil {
		return nil, fmt.Errorf("read npy body of %s: %w", fileName, err)
	}
	return denseMat, nil
}

//WriteNpy stores values as a single-column float64 npy array.
func WriteNpy(fileName string, values []float32) (err error) {
	dst, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
	}()

	data := make([]float64, len(values))
	for i, v := range values {
		data[i] = float64(v)
	}
	if len(data) == 0 {
		return npyio.Write(dst, data)
	}
	return npyio.Write(dst, mat.NewDense(len(data), 1, data))
}

//ReadTrainData loads a row-per-sample matrix and its responses from two npy files.
func ReadTrainData(samplesFile, responsesFile string, opts ...TrainDataOption) (*TrainData, error) {
	samples, err := ReadNpy(samplesFile)
	if err != nil {
		return nil, err
	}
	responses, err := ReadNpy(responsesFile)
	if err != nil {
		return nil, err
	}
	return NewTrainDataFromDense(samples, RowSample, responses, opts...)
}
