// Package cache archives raw payloads on a billy filesystem so that a
// payload fetched once is never fetched again unless a refresh is forced.
package cache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"law_arch/internal/citation"
)

const extension = ".raw"

// CacheEntry describes the archived payload of one citation.
type CacheEntry struct {
	Jurisdiction string
	Citation     citation.Citation
	Path         string
	FetchedAt    time.Time
	Size         int64
}

// Archive is safe for concurrent use. Writes go to a temporary file that is
// renamed into place, so a reader sees either the previous payload or the
// new one, never a partial write.
type Archive struct {
	fs      billy.Filesystem
	mu      *sync.RWMutex
	version string
}

func New(fs billy.Filesystem) *Archive {
	return &Archive{fs: fs, mu: &sync.RWMutex{}}
}

// At is a view of the archive holding the payloads of one point-in-time
// version ("enacted", "2020-01-01"). Views share the filesystem and lock;
// the empty version is the archive itself.
func (a *Archive) At(version string) *Archive {
	if version == a.version {
		return a
	}
	return &Archive{fs: a.fs, mu: a.mu, version: version}
}

func (a *Archive) Version() string { return a.version }

// NewOS opens an archive rooted at dir, creating it when missing.
func NewOS(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache dir %s: %w", dir, err)
	}
	return New(osfs.New(dir)), nil
}

// Path is the location of c's payload relative to the archive root:
// jurisdiction/type/series/year/number/section.raw, each component escaped.
// The type segment carries a non-default container type and a version view
// appends "@version" to the file name. Distinct citations always map to
// distinct paths.
func (a *Archive) Path(c citation.Citation) string {
	c = citation.Normalize(c)
	year := ""
	if c.Year != 0 {
		year = strconv.Itoa(c.Year)
	}
	return a.fs.Join(
		escape(c.Jurisdiction),
		escape(c.TypeLabel()),
		escape(c.Series),
		escape(year),
		escape(c.Number),
		escape(c.Section)+a.suffix()+extension,
	)
}

func (a *Archive) suffix() string {
	if a.version == "" {
		return ""
	}
	return "@" + escape(a.version)
}

// Get returns the archived payload of c. A missing entry is not an error.
func (a *Archive) Get(c citation.Citation) ([]byte, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	data, err := util.ReadFile(a.fs, a.Path(c))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", c, err)
	}
	return data, true, nil
}

// Put stores raw for c, replacing any previous payload.
func (a *Archive) Put(c citation.Citation, raw []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	target := a.Path(c)
	dir := dirOf(target)
	if err := a.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache put %s: %w", c, err)
	}
	tmp, err := util.TempFile(a.fs, dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("cache put %s: %w", c, err)
	}
	if err := writeAndClose(tmp, raw); err != nil {
		_ = a.fs.Remove(tmp.Name())
		return fmt.Errorf("cache put %s: %w", c, err)
	}
	if err := a.fs.Rename(tmp.Name(), target); err != nil {
		_ = a.fs.Remove(tmp.Name())
		return fmt.Errorf("cache put %s: %w", c, err)
	}
	return nil
}

func writeAndClose(f billy.File, raw []byte) error {
	if _, err := f.Write(raw); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (a *Archive) Entry(c citation.Citation) (CacheEntry, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	p := a.Path(c)
	info, err := a.fs.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return CacheEntry{}, false, nil
	}
	if err != nil {
		return CacheEntry{}, false, fmt.Errorf("cache stat %s: %w", c, err)
	}
	c = citation.Normalize(c)
	return CacheEntry{
		Jurisdiction: c.Jurisdiction,
		Citation:     c,
		Path:         p,
		FetchedAt:    info.ModTime(),
		Size:         info.Size(),
	}, true, nil
}

// Purge removes every payload of a jurisdiction.
func (a *Archive) Purge(jurisdiction string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	dir := escape(strings.ToLower(strings.TrimSpace(jurisdiction)))
	if err := util.RemoveAll(a.fs, dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("cache purge %s: %w", jurisdiction, err)
	}
	return nil
}

// Probe checks that the archive accepts writes.
func (a *Archive) Probe() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := util.TempFile(a.fs, ".", ".probe-")
	if err != nil {
		return fmt.Errorf("cache not writable: %w", err)
	}
	if _, err := io.WriteString(f, "ok"); err != nil {
		f.Close()
		return fmt.Errorf("cache not writable: %w", err)
	}
	f.Close()
	return a.fs.Remove(f.Name())
}

func dirOf(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[:i]
	}
	return ""
}

// escape makes s a safe, case-stable path component. Letters, digits and
// ".-()" pass through except upper case letters, which become "^" and the
// lower case letter, so names never collide on case-insensitive
// filesystems. Every other byte becomes %XX. The empty string is "_" and
// components made only of dots are fully escaped.
func escape(s string) string {
	if s == "" {
		return "_"
	}
	if strings.Trim(s, ".") == "" {
		return strings.Repeat("%2E", len(s))
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9', ch == '.', ch == '-', ch == '(', ch == ')':
			b.WriteByte(ch)
		case ch >= 'A' && ch <= 'Z':
			b.WriteByte('^')
			b.WriteByte(ch + ('a' - 'A'))
		default:
			fmt.Fprintf(&b, "%%%02X", ch)
		}
	}
	return b.String()
}
