// Package corpus loads the training set: one subdirectory per identity under
// a root directory, each holding sample images of that person.
//
// Identities and files are taken in lexicographic order, so the same tree
// always produces the same ids. Extensions are matched case-insensitively.
package corpus

import (
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/abihf/facewatch/errdefs"
	"github.com/abihf/facewatch/labels"
	"github.com/pkg/errors"
)

// Extensions lists the recognized sample file extensions, lower case.
var Extensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".gif":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// Identity is one person directory in the corpus.
type Identity struct {
	ID    int
	Name  string
	Dir   string
	Files []string
}

// Layout is the discovered corpus before any image is decoded.
type Layout struct {
	Root       string
	Identities []Identity
}

// Files returns the number of candidate sample files.
func (l *Layout) Files() int {
	n := 0
	for _, id := range l.Identities {
		n += len(id.Files)
	}
	return n
}

// Names returns identity names ordered by id.
func (l *Layout) Names() []string {
	names := make([]string, len(l.Identities))
	for i, id := range l.Identities {
		names[i] = id.Name
	}
	return names
}

// Sample is one normalized face image and the identity it belongs to.
type Sample struct {
	Image *image.Gray
	ID    int
	Path  string
}

// Corpus is the loaded training set.
type Corpus struct {
	Samples  []Sample
	Registry *labels.Registry
	Skipped  int
}

type options struct {
	progress func(path string, ok bool)
}

type Option func(*options)

// WithProgress registers fn to be called once per candidate file after it
// was decoded or skipped.
func WithProgress(fn func(path string, ok bool)) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// Scan discovers and loads the corpus under root.
func Scan(root string, opts ...Option) (*Corpus, error) {
	layout, err := Discover(root)
	if err != nil {
		return nil, err
	}
	return layout.Load(opts...)
}

// Discover lists identity directories and their sample files.
func Discover(root string) (*Layout, error) {
	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(errdefs.ErrCorpusNotFound, "%s", root)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "can not stat corpus %s", root)
	}
	if !info.IsDir() {
		return nil, errors.Wrapf(errdefs.ErrCorpusNotFound, "%s is not a directory", root)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, "can not list corpus %s", root)
	}

	layout := &Layout{Root: root}
	for _, e := range entries {
		name := e.Name()
		dir := filepath.Join(root, name)
		if strings.HasPrefix(name, ".") || !isDir(dir) {
			continue
		}
		if strings.ContainsAny(name, "\r\n") {
			slog.Warn("Skipping identity directory with line break in name", "dir", dir)
			continue
		}

		files, err := listSamples(dir)
		if err != nil {
			return nil, err
		}
		layout.Identities = append(layout.Identities, Identity{
			ID:    len(layout.Identities),
			Name:  name,
			Dir:   dir,
			Files: files,
		})
	}
	return layout, nil
}

func listSamples(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "can not list identity directory %s", dir)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !Extensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Load decodes and normalizes every sample file. Files that can not be
// decoded are logged and skipped. An identity without usable images keeps
// its id.
func (l *Layout) Load(opts ...Option) (*Corpus, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	registry, err := labels.Build(l.Names())
	if err != nil {
		return nil, errors.Wrapf(errdefs.ErrCorpusInvalid, "%s: %v", l.Root, err)
	}

	c := &Corpus{Registry: registry}
	for _, id := range l.Identities {
		for _, path := range id.Files {
			img, err := DecodeFile(path)
			if err != nil {
				slog.Warn("Skipping unreadable sample", "path", path, "error", err)
				c.Skipped++
			} else {
				c.Samples = append(c.Samples, Sample{Image: img, ID: id.ID, Path: path})
			}
			if o.progress != nil {
				o.progress(path, err == nil)
			}
		}
	}

	if len(c.Samples) == 0 {
		return nil, errors.Wrapf(errdefs.ErrEmptyCorpus, "%s: %d identities, %d files skipped",
			l.Root, len(l.Identities), c.Skipped)
	}
	return c, nil
}
