package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"macroexp/internal/ast"
	"macroexp/internal/macros"
	"macroexp/internal/symbols"
)

// ArtifactExt is the extension of standalone binding artifacts.
const ArtifactExt = ".mxb"

// EncodeArtifact persists b outside of any compilation run. Type
// arguments would refer to symbols of a run, so they are rejected.
func EncodeArtifact(b macros.Binding) ([]byte, error) {
	if len(b.Targs) > 0 {
		return nil, errors.New("binding artifacts cannot carry type arguments")
	}
	u := symbols.NewUniverse()
	return macros.MarshalPickle(u.Table, ast.NewTrees(u.Strings, 0), macros.PickleOf(b))
}

// DecodeArtifact restores a binding in a fresh universe.
func DecodeArtifact(data []byte) (macros.Binding, error) {
	u := symbols.NewUniverse()
	p, err := macros.UnmarshalPickle(u.Table, ast.NewTrees(u.Strings, 0), data)
	if err != nil {
		return macros.Binding{}, err
	}
	return macros.Decode(p)
}

// WriteArtifact encodes b into path, replacing it atomically.
func WriteArtifact(path string, b macros.Binding) error {
	data, err := EncodeArtifact(b)
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(f.Name())
	}()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// ArtifactResult is the outcome of decoding one artifact file.
type ArtifactResult struct {
	Path    string
	Binding macros.Binding
	Err     error
}

// DecodeArtifacts reads and decodes files in parallel. Per-file failures
// land in the results; the error is only set when ctx is cancelled.
func DecodeArtifacts(ctx context.Context, files []string, jobs int) ([]ArtifactResult, error) {
	results := make([]ArtifactResult, len(files))
	if len(files) == 0 {
		return results, nil
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(files)))
	for i, path := range files {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			// индекс i уникален для горутины, мьютекс не нужен
			results[i] = ArtifactResult{Path: path}
			data, err := os.ReadFile(path)
			if err != nil {
				results[i].Err = err
				return nil
			}
			b, err := DecodeArtifact(data)
			if err != nil {
				results[i].Err = fmt.Errorf("decode: %w", err)
				return nil
			}
			results[i].Binding = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
