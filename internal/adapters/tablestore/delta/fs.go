package delta

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	perr "awardarchive/internal/platform/errors"
)

// FSStore is an ObjectStore over a local directory.
// PutIfAbsent relies on hard-linking a temp file into place, which fails
// atomically when the target already exists
type FSStore struct {
	root string
}

// NewFS returns an ObjectStore rooted at dir, creating it if needed
func NewFS(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "create object store root")
	}
	return &FSStore{root: dir}, nil
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Get implements ObjectStore
func (s *FSStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, perr.NotFoundf("object %s does not exist", key)
	}
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "read object")
	}
	return data, nil
}

// Put implements ObjectStore: write to a temp file, then rename into place
func (s *FSStore) Put(ctx context.Context, key string, data []byte) error {
	dst := s.path(key)
	tmp, err := s.writeTemp(dst, data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return perr.Wrap(err, perr.ErrorCodeDB, "rename object into place")
	}
	return nil
}

// PutIfAbsent implements ObjectStore: a hard link to an existing target
// fails with EEXIST, which is the commit-race signal
func (s *FSStore) PutIfAbsent(ctx context.Context, key string, data []byte) error {
	dst := s.path(key)
	tmp, err := s.writeTemp(dst, data)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return perr.Conflictf("object %s already exists", key)
		}
		return perr.Wrap(err, perr.ErrorCodeDB, "link object into place")
	}
	return nil
}

// List implements ObjectStore
func (s *FSStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, rerr := filepath.Rel(s.root, p)
		if rerr != nil {
			return rerr
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "list objects")
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete implements ObjectStore
func (s *FSStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return perr.Wrap(err, perr.ErrorCodeDB, "delete object")
	}
	return nil
}

func (s *FSStore) writeTemp(dst string, data []byte) (string, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeDB, "create object dir")
	}
	tmp := filepath.Join(dir, ".tmp-"+uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeDB, "create temp object")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", perr.Wrap(err, perr.ErrorCodeDB, "write temp object")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", perr.Wrap(err, perr.ErrorCodeDB, "close temp object")
	}
	return tmp, nil
}
