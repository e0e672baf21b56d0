package pipeline

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// maxStoredLogLines caps the log excerpt kept in a stored result. Toolkit
// logs for a long solve can run to megabytes; the full log stays in the
// toolkit's own log file, the result keeps the tail.
const maxStoredLogLines = 500

// ResultProxy is a lazy reference to a stage result on disk. The Context
// keeps proxies rather than materialized results so checkpoints stay small
// and resuming a long run does not load every historical log excerpt.
type ResultProxy struct {
	StageNumber int
	Stage       string
	Vis         []string
	Status      Status

	// Path is the on-disk location of the serialized result.
	Path string
}

// Load reads the full result from disk.
func (p *ResultProxy) Load() (*Result, error) {
	blob, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read result %s: %w", p.Path, err)
	}
	res, err := decodeResult(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decode result %s: %w", p.Path, err)
	}
	return res, nil
}

// storeResult writes a result to the results directory and returns its
// proxy. The stored copy has its log excerpt capped; the in-memory result
// the caller holds is untouched.
func storeResult(dir string, stageNumber int, res *Result) (*ResultProxy, error) {
	stored := *res
	if len(stored.Log) > maxStoredLogLines {
		stored.Log = stored.Log[len(stored.Log)-maxStoredLogLines:]
	}

	blob, err := encodeResult(&stored)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result for stage %d: %w", stageNumber, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("stage%03d-%s.result", stageNumber, res.Stage))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write result file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return nil, fmt.Errorf("failed to finalize result file: %w", err)
	}

	return &ResultProxy{
		StageNumber: stageNumber,
		Stage:       res.Stage,
		Vis:         res.Vis,
		Status:      res.Status,
		Path:        path,
	}, nil
}

func encodeResult(res *Result) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(res); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeResult(blob []byte) (*Result, error) {
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	var res Result
	if err := gob.NewDecoder(gz).Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}
