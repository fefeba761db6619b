package imageio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Extensions are the file extensions offered for editing.
var Extensions = []string{".png", ".jpg", ".jpeg", ".bmp"}

// Entry is one image file found by ListImages.
type Entry struct {
	Name    string    `json:"name"`
	Path    string    `json:"-"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// HumanSize formats the file size for display, e.g. "1.2 MB".
func (e Entry) HumanSize() string {
	return humanize.Bytes(uint64(e.Size))
}

// HasImageExt reports whether name carries one of Extensions.
func HasImageExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// IsOutput reports whether name looks like a file this tool wrote.
func IsOutput(name string) bool {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.HasSuffix(base, ResultSuffix) || strings.HasSuffix(base, MaskSuffix)
}

// ListImages scans dir (not recursively) for editable images, sorted by name.
// Files previously written by the editor are skipped.
func ListImages(dir string) ([]Entry, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("imageio: list %s: %w", dir, err)
	}
	var out []Entry
	for _, de := range des {
		if de.IsDir() || !HasImageExt(de.Name()) || IsOutput(de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{
			Name:    de.Name(),
			Path:    filepath.Join(dir, de.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
