package upload

import (
	"path"
	"sync"

	"github.com/jlaffaye/ftp"
)

// remoteTree caches directory listings of the remote side.
type remoteTree struct {
	c Client

	mu sync.Mutex
	// dirs maps a directory to its entries by name; a nil map means the
	// directory does not exist.
	dirs map[string]map[string]*ftp.Entry
}

func newRemoteTree(c Client) *remoteTree {
	return &remoteTree{c: c, dirs: make(map[string]map[string]*ftp.Entry)}
}

func isRoot(dir string) bool {
	return dir == "/" || dir == "." || dir == ""
}

// lookup returns the file entry at p, or nil when p does not exist remotely.
func (t *remoteTree) lookup(p string) (*ftp.Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries, err := t.list(path.Dir(p))
	if err != nil || entries == nil {
		return nil, err
	}
	e := entries[path.Base(p)]
	if e == nil || e.Type != ftp.EntryTypeFile {
		return nil, nil
	}
	return e, nil
}

// ensure creates dir and its missing parents.
func (t *remoteTree) ensure(dir string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mkdirAll(dir)
}

func (t *remoteTree) mkdirAll(dir string) error {
	if isRoot(dir) {
		return nil
	}
	entries, err := t.list(dir)
	if err != nil {
		return err
	}
	if entries != nil {
		return nil
	}
	if err := t.mkdirAll(path.Dir(dir)); err != nil {
		return err
	}
	if err := t.c.MakeDir(dir); err != nil {
		return err
	}
	t.dirs[dir] = map[string]*ftp.Entry{}
	return nil
}

// list must be called with mu held. A directory exists when its parent
// lists it as a folder; the root always exists.
func (t *remoteTree) list(dir string) (map[string]*ftp.Entry, error) {
	if entries, ok := t.dirs[dir]; ok {
		return entries, nil
	}

	if !isRoot(dir) {
		parent, err := t.list(path.Dir(dir))
		if err != nil {
			return nil, err
		}
		if e := parent[path.Base(dir)]; e == nil || e.Type != ftp.EntryTypeFolder {
			t.dirs[dir] = nil
			return nil, nil
		}
	}

	listed, err := t.c.List(dir)
	if err != nil {
		return nil, err
	}
	entries := make(map[string]*ftp.Entry, len(listed))
	for _, e := range listed {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		entries[e.Name] = e
	}
	t.dirs[dir] = entries
	return entries, nil
}
