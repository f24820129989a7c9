package bundle

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/josancamon19/web-environments/internal/entity"
)

var (
	// ErrNoManifest means the directory never finalized (or is not a bundle).
	ErrNoManifest = errors.New("bundle: no manifest found")
	// ErrNotReplayable means the bundle finalized with a non-complete status.
	ErrNotReplayable = errors.New("bundle: session did not complete; not replayable")
	// ErrSchemaVersion means the manifest's schema is not supported.
	ErrSchemaVersion = errors.New("bundle: unsupported schema version")
)

// Bundle is a finalized capture loaded into memory. Never mutated.
type Bundle struct {
	Dir       string
	Manifest  entity.Manifest
	Steps     []entity.Step
	Exchanges []*entity.NetworkExchange
	Storage   *entity.StorageState
}

// Load reads a bundle for replay. It fails loudly on a missing or corrupt
// manifest, an unsupported schema version, or a non-complete status; there
// is no degraded-mode replay.
func Load(dir string) (*Bundle, error) {
	b, err := Open(dir)
	if err != nil {
		return nil, err
	}
	if b.Manifest.Status != entity.StatusComplete {
		return nil, fmt.Errorf("%w (status %q)", ErrNotReplayable, b.Manifest.Status)
	}
	return b, nil
}

// Open reads a bundle regardless of its terminal status, so the artifacts
// of an incomplete session stay inspectable. Replay must use Load.
func Open(dir string) (*Bundle, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w in %s", ErrNoManifest, dir)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest entity.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("corrupt manifest in %s: %w", dir, err)
	}
	if manifest.SchemaVersion != entity.SchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrSchemaVersion, manifest.SchemaVersion)
	}

	b := &Bundle{Dir: dir, Manifest: manifest}

	if err := readLines(filepath.Join(dir, manifest.Artifacts.Steps), func(line []byte) error {
		var s entity.Step
		if err := json.Unmarshal(line, &s); err != nil {
			return err
		}
		b.Steps = append(b.Steps, s)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("read steps: %w", err)
	}
	// File order follows write completion; session order is the sequence field.
	sort.SliceStable(b.Steps, func(i, j int) bool {
		return b.Steps[i].Sequence < b.Steps[j].Sequence
	})

	byID := make(map[string]*entity.NetworkExchange)
	if err := readLines(filepath.Join(dir, manifest.Artifacts.Requests), func(line []byte) error {
		var r entity.RequestRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return err
		}
		ex := &entity.NetworkExchange{Request: r}
		byID[r.ExchangeID] = ex
		b.Exchanges = append(b.Exchanges, ex)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("read requests: %w", err)
	}
	if err := readLines(filepath.Join(dir, manifest.Artifacts.Responses), func(line []byte) error {
		var r entity.ResponseRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return err
		}
		if ex, ok := byID[r.ExchangeID]; ok {
			resp := r
			ex.Response = &resp
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("read responses: %w", err)
	}

	if manifest.Artifacts.StorageState != "" {
		raw, err := os.ReadFile(filepath.Join(dir, manifest.Artifacts.StorageState))
		switch {
		case err == nil:
			var st entity.StorageState
			if err := json.Unmarshal(raw, &st); err != nil {
				return nil, fmt.Errorf("corrupt storage state: %w", err)
			}
			b.Storage = &st
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read storage state: %w", err)
		}
	}

	return b, nil
}

// Artifact reads an artifact referenced by a step, by bundle-relative path.
func (b *Bundle) Artifact(rel string) ([]byte, error) {
	return os.ReadFile(filepath.Join(b.Dir, rel))
}

func readLines(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return sc.Err()
}
