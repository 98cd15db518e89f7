//Package modelfile stores models as indented JSON documents of named blocks.
//Files ending in .zst or .lz4 are compressed with zstd or lz4 frames.
package modelfile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

//Save writes v to filename.
func Save(filename string, v any) (err error) {
	dest, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("can't open file %s to write: %w", filename, err)
	}
	defer func() {
		if cerr := dest.Close(); err == nil {
			err = cerr
		}
	}()

	modelByteRepr, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	w, closeWriter, err := compressor(filename, dest)
	if err != nil {
		return err
	}
	if _, err = w.Write(modelByteRepr); err != nil {
		return err
	}
	return closeWriter()
}

//Load reads filename into v.
func Load(filename string, v any) (err error) {
	source, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := source.Close(); err == nil {
			err = cerr
		}
	}()

	r, closeReader, err := decompressor(filename, source)
	if err != nil {
		return err
	}
	defer closeReader()

	if err = json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode model %s: %w", filename, err)
	}
	return nil
}

func compressor(filename string, dest io.Writer) (io.Writer, func() error, error) {
	switch {
	case strings.HasSuffix(filename, ".zst"):
		enc, err := zstd.NewWriter(dest)
		if err != nil {
			return nil, nil, err
		}
		return enc, enc.Close, nil
	case strings.HasSuffix(filename, ".lz4"):
		zw := lz4.NewWriter(dest)
		return zw, zw.Close, nil
	default:
		return dest, func() error { return nil }, nil
	}
}

func decompressor(filename string, source io.Reader) (io.Reader, func(), error) {
	switch {
	case strings.HasSuffix(filename, ".zst"):
		dec, err := zstd.NewReader(source)
		if err != nil {
			return nil, nil, err
		}
		return dec, dec.Close, nil
	case strings.HasSuffix(filename, ".lz4"):
		return lz4.NewReader(source), func() {}, nil
	default:
		return source, func() {}, nil
	}
}
