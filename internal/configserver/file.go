package configserver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileStore serves read-only properties from {application}-{profile}.toml
// files; the default profile lives in {application}.toml. Nested tables
// become dotted keys.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(application, profile string) string {
	return filepath.Join(s.dir, sourceKey{application: application, profile: profile}.name()+".toml")
}

func (s *FileStore) Load(_ context.Context, application, profile string) (map[string]string, bool, error) {
	var doc map[string]any
	_, err := toml.DecodeFile(s.path(application, profile), &doc)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", s.path(application, profile), err)
	}

	props := make(map[string]string)
	flatten("", doc, props)
	return props, len(props) > 0, nil
}

func (s *FileStore) Merge(context.Context, string, string, map[string]string) error {
	return ErrReadOnly
}

func (s *FileStore) Delete(context.Context, string, string, string) (bool, error) {
	return false, ErrReadOnly
}

func (s *FileStore) Ping(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

func flatten(prefix string, doc map[string]any, out map[string]string) {
	for k, v := range doc {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case []any:
			parts := make([]string, len(val))
			for i, e := range val {
				parts[i] = fmt.Sprint(e)
			}
			out[key] = strings.Join(parts, ",")
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// Applications lists the application names that have a file; used for
// the startup log.
func (s *FileStore) Applications() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".toml")
		if !ok || e.IsDir() {
			continue
		}
		app, _, _ := strings.Cut(name, "-")
		seen[app] = true
	}
	apps := make([]string, 0, len(seen))
	for app := range seen {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	return apps, nil
}
