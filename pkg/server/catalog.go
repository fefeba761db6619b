package server

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Fepozopo/nmedit/pkg/blend"
	"github.com/Fepozopo/nmedit/pkg/imageio"
)

var errNotFound = errors.New("server: image not found")

// item is an editable image. Folder images are decoded on first use.
type item struct {
	entry  imageio.Entry
	origin string // "upload" or "folder"

	load sync.Mutex // guards src and buf until the first decode
	src  *imageio.Source
	buf  *blend.Image // src converted to the engine's channel order
}

// catalog merges uploaded images with the images found in the folder being
// scanned. An upload shadows a folder image with the same name.
type catalog struct {
	mu      sync.Mutex
	dir     string
	order   blend.ChannelOrder
	uploads map[string]*item
	folder  map[string]*item
	log     *slog.Logger
}

func newCatalog(dir string, order blend.ChannelOrder, log *slog.Logger) *catalog {
	return &catalog{
		dir:     dir,
		order:   order,
		uploads: map[string]*item{},
		folder:  map[string]*item{},
		log:     log,
	}
}

// refresh rescans the folder. Cached decodes survive when size and mtime match.
func (c *catalog) refresh() error {
	if c.dir == "" {
		return nil
	}
	entries, err := imageio.ListImages(c.dir)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	next := make(map[string]*item, len(entries))
	for _, e := range entries {
		if old, ok := c.folder[e.Name]; ok && old.entry.Size == e.Size && old.entry.ModTime.Equal(e.ModTime) {
			next[e.Name] = old
			continue
		}
		next[e.Name] = &item{entry: e, origin: "folder"}
	}
	c.folder = next
	c.log.Debug("folder scanned", "dir", c.dir, "images", len(next))
	return nil
}

func (c *catalog) addUpload(src *imageio.Source) imageio.Entry {
	e := imageio.Entry{Name: src.Name, Size: src.Size}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uploads[src.Name] = &item{
		entry:  e,
		origin: "upload",
		src:    src,
		buf:    blend.FromImage(src.Image, c.order),
	}
	return e
}

type listing struct {
	imageio.Entry
	Origin    string `json:"origin"`
	HumanSize string `json:"human_size"`
}

func (c *catalog) list() []listing {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]listing, 0, len(c.uploads)+len(c.folder))
	for name, it := range c.folder {
		if _, shadowed := c.uploads[name]; shadowed {
			continue
		}
		out = append(out, listing{Entry: it.entry, Origin: it.origin, HumanSize: it.entry.HumanSize()})
	}
	for _, it := range c.uploads {
		out = append(out, listing{Entry: it.entry, Origin: it.origin, HumanSize: it.entry.HumanSize()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// get returns the decoded image, loading folder images on demand.
func (c *catalog) get(name string) (*item, error) {
	c.mu.Lock()
	it, ok := c.uploads[name]
	if !ok {
		it, ok = c.folder[name]
	}
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", errNotFound, name)
	}

	it.load.Lock()
	defer it.load.Unlock()
	if it.src != nil {
		return it, nil
	}
	src, err := imageio.Load(it.entry.Path)
	if err != nil {
		return nil, err
	}
	it.src = src
	it.buf = blend.FromImage(src.Image, c.order)
	return it, nil
}

// sourceDir is the folder a folder-scan image lives in; empty for uploads.
func (it *item) sourceDir() string {
	if it.origin == "folder" && it.entry.Path != "" {
		return filepath.Dir(it.entry.Path)
	}
	return ""
}
