// Package vault is the host workspace: the directory of documents whose
// activity is tracked.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// DefaultConfigDir is the vault's configuration folder. It is never tracked.
const DefaultConfigDir = ".obsidian"

var (
	// ErrNotFound means a stored path no longer resolves to a document.
	ErrNotFound = errors.New("document not found")
	// ErrExists is returned when creating a document that already exists.
	ErrExists = errors.New("document already exists")
)

// Vault resolves vault-relative paths against a filesystem.
type Vault struct {
	fs        afero.Fs
	root      string
	configDir string
	opener    Opener
}

// Options configure a Vault.
type Options struct {
	// ConfigDir defaults to DefaultConfigDir.
	ConfigDir string
	// Opener shows documents to the user. Nil means documents cannot be
	// opened.
	Opener Opener
}

// New wraps fsys, which must already be rooted at the vault. root is the
// vault's location on disk, used to hand absolute paths to the opener and
// the watcher; it may be empty for in-memory vaults.
func New(fsys afero.Fs, root string, opts Options) *Vault {
	if opts.ConfigDir == "" {
		opts.ConfigDir = DefaultConfigDir
	}
	return &Vault{fs: fsys, root: root, configDir: opts.ConfigDir, opener: opts.Opener}
}

// Open returns a vault backed by the directory at root.
func Open(root string, opts Options) (*Vault, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve vault %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open vault: %s is not a directory", abs)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), abs), abs, opts), nil
}

// Root is the vault's directory on disk.
func (v *Vault) Root() string { return v.root }

// ConfigDir is the vault-relative configuration folder.
func (v *Vault) ConfigDir() string { return v.configDir }

// DataPath is where activity data is stored inside the vault.
func (v *Vault) DataPath() string {
	return path.Join(v.configDir, "plugins", "vault-activity", "data.json")
}

// Fs is the vault filesystem.
func (v *Vault) Fs() afero.Fs { return v.fs }

// Clean normalizes p to a slash separated vault-relative path. ok is false
// for paths that escape the vault or name its root.
func Clean(p string) (clean string, ok bool) {
	p = path.Clean("/" + filepath.ToSlash(p))
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return "", false
	}
	return p, true
}

// Resolve checks that p names an existing document and returns its cleaned
// form. It returns ErrNotFound otherwise.
func (v *Vault) Resolve(p string) (string, error) {
	clean, ok := Clean(p)
	if !ok {
		return "", fmt.Errorf("%q: %w", p, ErrNotFound)
	}
	info, err := v.fs.Stat(clean)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", clean, ErrNotFound)
		}
		return "", fmt.Errorf("stat %s: %w", clean, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a folder: %w", clean, ErrNotFound)
	}
	return clean, nil
}

// Create writes a new document. It fails with ErrExists if p is taken.
func (v *Vault) Create(_ context.Context, p string, content []byte) (string, error) {
	clean, ok := Clean(p)
	if !ok {
		return "", fmt.Errorf("create %q: invalid path", p)
	}
	exists, err := afero.Exists(v.fs, clean)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", clean, err)
	}
	if exists {
		return "", fmt.Errorf("create %s: %w", clean, ErrExists)
	}
	if dir := path.Dir(clean); dir != "." {
		if err := v.fs.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create %s: %w", clean, err)
		}
	}
	if err := afero.WriteFile(v.fs, clean, content, 0o644); err != nil {
		return "", fmt.Errorf("create %s: %w", clean, err)
	}
	return clean, nil
}

// OpenDocument resolves p and hands it to the opener.
func (v *Vault) OpenDocument(ctx context.Context, p string) error {
	clean, err := v.Resolve(p)
	if err != nil {
		return err
	}
	if v.opener == nil {
		return fmt.Errorf("open %s: no opener configured", clean)
	}
	return v.opener.Open(ctx, v.Abs(clean))
}

// Abs maps a vault-relative path to the filesystem path given to the opener.
func (v *Vault) Abs(p string) string {
	if v.root == "" {
		return p
	}
	return filepath.Join(v.root, filepath.FromSlash(p))
}

// Rel maps an absolute path under the vault root back to a vault-relative
// one. ok is false for paths outside the vault.
func (v *Vault) Rel(abs string) (string, bool) {
	if v.root == "" {
		return Clean(abs)
	}
	rel, err := filepath.Rel(v.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return Clean(rel)
}

// Folders lists every folder in the vault, the root included as ".", skipping
// the configuration folder.
func (v *Vault) Folders() ([]string, error) {
	var dirs []string
	err := afero.Walk(v.fs, ".", func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		p = filepath.ToSlash(p)
		if p == v.configDir || strings.HasPrefix(p, v.configDir+"/") {
			return filepath.SkipDir
		}
		dirs = append(dirs, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk vault: %w", err)
	}
	sort.Strings(dirs)
	return dirs, nil
}
