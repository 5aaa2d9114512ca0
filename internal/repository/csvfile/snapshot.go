package csvfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/codec"
)

const snapshotExt = ".snapshot.zst"

type snapshotRepositoryImpl struct {
	dir   string
	codec *codec.JSON
}

// NewSnapshotRepository keeps one file per snapshot version in dir. Versions
// are UUIDv7, so lexical file order is recompute order.
func NewSnapshotRepository(dir string) (compliance.SnapshotRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	c, err := codec.NewJSON()
	if err != nil {
		return nil, err
	}
	return &snapshotRepositoryImpl{dir: dir, codec: c}, nil
}

func (r *snapshotRepositoryImpl) path(version string) string {
	return filepath.Join(r.dir, version+snapshotExt)
}

// Save writes to a temporary file and renames it, so a reader never sees a
// partial snapshot.
func (r *snapshotRepositoryImpl) Save(ctx context.Context, s *compliance.Snapshot) error {
	data, err := r.codec.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", s.Version, err)
	}
	tmp, err := os.CreateTemp(r.dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), r.path(s.Version))
}

func (r *snapshotRepositoryImpl) versions() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if name := e.Name(); !e.IsDir() && strings.HasSuffix(name, snapshotExt) {
			out = append(out, strings.TrimSuffix(name, snapshotExt))
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

func (r *snapshotRepositoryImpl) Latest(ctx context.Context) (*compliance.Snapshot, error) {
	versions, err := r.versions()
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, compliance.ErrSnapshotNotFound
	}
	return r.GetByVersion(ctx, versions[0])
}

func (r *snapshotRepositoryImpl) GetByVersion(ctx context.Context, version string) (*compliance.Snapshot, error) {
	if version == "" || strings.ContainsAny(version, `/\.`) {
		return nil, compliance.ErrSnapshotNotFound
	}
	data, err := os.ReadFile(r.path(version))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, compliance.ErrSnapshotNotFound
		}
		return nil, err
	}
	var s compliance.Snapshot
	if err := r.codec.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", version, err)
	}
	return &s, nil
}

func (r *snapshotRepositoryImpl) Prune(ctx context.Context, keep int) (int64, error) {
	versions, err := r.versions()
	if err != nil {
		return 0, err
	}
	var deleted int64
	for i := max(keep, 1); i < len(versions); i++ {
		if err := os.Remove(r.path(versions[i])); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
