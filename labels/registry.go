// Package labels maps identity ids to display names and stores the mapping
// as a flat text file with one "id;name" record per line.
package labels

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/abihf/facewatch/errdefs"
	"github.com/abihf/facewatch/utils/fsutil"
	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

const (
	// Unknown is reported for faces that do not resolve to an identity.
	Unknown = "Unknown"
	// Separator divides the id from the name in the label file.
	Separator = ";"
)

// Registry is an immutable id to name mapping.
type Registry struct {
	names map[int]string
}

// Build assigns ids 0..len(names)-1 in the order names are given.
func Build(names []string) (*Registry, error) {
	r := &Registry{names: make(map[int]string, len(names))}
	seen := make(map[string]int, len(names))
	for id, name := range names {
		name, err := normalize(name)
		if err != nil {
			return nil, errors.Wrapf(err, "identity %d", id)
		}
		if prev, ok := seen[name]; ok {
			return nil, errors.Wrapf(errdefs.ErrMalformed, "identity %q listed as both %d and %d", name, prev, id)
		}
		seen[name] = id
		r.names[id] = name
	}
	return r, nil
}

func normalize(name string) (string, error) {
	name = norm.NFC.String(name)
	switch {
	case name == "":
		return "", errors.Wrap(errdefs.ErrMalformed, "empty name")
	case strings.ContainsAny(name, "\r\n"):
		return "", errors.Wrapf(errdefs.ErrMalformed, "name %q contains a line break", name)
	}
	return name, nil
}

// Lookup returns the name registered for id.
func (r *Registry) Lookup(id int) (string, bool) {
	if r == nil {
		return "", false
	}
	name, ok := r.names[id]
	return name, ok
}

// Name returns the name registered for id or Unknown.
func (r *Registry) Name(id int) string {
	if name, ok := r.Lookup(id); ok {
		return name
	}
	return Unknown
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// IDs returns the registered ids in ascending order.
func (r *Registry) IDs() []int {
	ids := make([]int, 0, r.Len())
	if r == nil {
		return ids
	}
	for id := range r.names {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Names returns the registered names ordered by id.
func (r *Registry) Names() []string {
	ids := r.IDs()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = r.names[id]
	}
	return names
}

func (r *Registry) Equal(o *Registry) bool {
	if r.Len() != o.Len() {
		return false
	}
	for _, id := range r.IDs() {
		name, ok := o.Lookup(id)
		if !ok || name != r.names[id] {
			return false
		}
	}
	return true
}

// Save writes one "id;name" line per identity in ascending id order.
func (r *Registry) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, id := range r.IDs() {
		if _, err := fmt.Fprintf(bw, "%d%s%s\n", id, Separator, r.names[id]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveFile replaces path with the registry contents.
func (r *Registry) SaveFile(path string) error {
	err := fsutil.WriteFile(path, 0o644, r.Save)
	return errors.Wrapf(err, "can not write label file %s", path)
}

// Load parses a label file. Blank lines are ignored. Names may contain the
// separator, only the first one splits the record.
func Load(rd io.Reader) (*Registry, error) {
	r := &Registry{names: make(map[int]string)}
	sc := bufio.NewScanner(rd)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}

		idText, name, ok := strings.Cut(text, Separator)
		if !ok {
			return nil, errors.Wrapf(errdefs.ErrMalformed, "line %d: missing %q separator", line, Separator)
		}
		id, err := strconv.Atoi(strings.TrimSpace(idText))
		if err != nil || id < 0 {
			return nil, errors.Wrapf(errdefs.ErrMalformed, "line %d: invalid id %q", line, idText)
		}
		if name == "" {
			return nil, errors.Wrapf(errdefs.ErrMalformed, "line %d: missing name", line)
		}
		if _, dup := r.names[id]; dup {
			return nil, errors.Wrapf(errdefs.ErrMalformed, "line %d: duplicate id %d", line, id)
		}
		r.names[id] = name
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "can not read label file")
	}
	return r, nil
}

// LoadFile reads the label file at path.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(errdefs.ErrNotFound, "%s", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "can not open label file %s", path)
	}
	defer f.Close()

	r, err := Load(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return r, nil
}
