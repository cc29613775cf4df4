package stackcapture

import (
	"bufio"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"
)

// SourceCache looks up source lines for traceback frames. Cached files are
// revalidated against their size and modification time on every lookup, so
// an edited or deleted file never yields a stale line. Concurrent misses on
// one path share a single read.
type SourceCache struct {
	fs afero.Fs

	mu    sync.RWMutex
	files map[string]*sourceFile
	sg    singleflight.Group
}

type sourceFile struct {
	size    int64
	modTime time.Time
	lines   []string
}

// NewSourceCache returns a cache reading through fs; nil means the OS filesystem.
func NewSourceCache(fs afero.Fs) *SourceCache {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &SourceCache{
		fs:    fs,
		files: make(map[string]*sourceFile),
	}
}

// Line returns line n (1-based) of path with surrounding whitespace trimmed,
// or "" if it is unavailable.
func (c *SourceCache) Line(path string, n int) string {
	if path == "" || n < 1 {
		return ""
	}

	f := c.load(path)
	if f == nil || n > len(f.lines) {
		return ""
	}
	return strings.TrimSpace(f.lines[n-1])
}

func (c *SourceCache) load(path string) *sourceFile {
	fi, err := c.fs.Stat(path)
	if err != nil || fi.IsDir() {
		c.forget(path)
		return nil
	}

	c.mu.RLock()
	f, ok := c.files[path]
	c.mu.RUnlock()
	if ok && f.size == fi.Size() && f.modTime.Equal(fi.ModTime()) {
		return f
	}

	v, err, _ := c.sg.Do(path, func() (any, error) {
		lines, err := c.read(path)
		if err != nil {
			return nil, err
		}
		f := &sourceFile{size: fi.Size(), modTime: fi.ModTime(), lines: lines}
		c.mu.Lock()
		c.files[path] = f
		c.mu.Unlock()
		return f, nil
	})
	if err != nil {
		c.forget(path)
		return nil
	}
	return v.(*sourceFile)
}

func (c *SourceCache) read(path string) ([]string, error) {
	fh, err := c.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	var lines []string
	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

func (c *SourceCache) forget(path string) {
	c.mu.Lock()
	delete(c.files, path)
	c.mu.Unlock()
}
