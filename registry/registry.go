package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/opencontainers/go-digest"
	"go.uber.org/zap"

	"github.com/wasmship/wasmship/errors"
	"github.com/wasmship/wasmship/integrity"
)

// ManifestFile is the repository index at the registry root.
const ManifestFile = "repositories.json"

// LinkMode controls how a module's link list is validated at load time.
type LinkMode string

const (
	// LinkLenient treats links as metadata.
	LinkLenient LinkMode = "lenient"
	// LinkStrict excludes modules whose links name a repository (or
	// repository tag) absent from the manifest.
	LinkStrict LinkMode = "strict"
)

// ParseLinkMode parses a configuration value. Empty means lenient.
func ParseLinkMode(s string) (LinkMode, error) {
	switch LinkMode(strings.ToLower(s)) {
	case "", LinkLenient:
		return LinkLenient, nil
	case LinkStrict:
		return LinkStrict, nil
	default:
		return "", errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("unknown link mode %q (valid: lenient, strict)", s))
	}
}

// Option configures Load.
type Option func(*options)

type options struct {
	linkMode LinkMode
}

// WithLinkMode sets link validation. Default is LinkLenient.
func WithLinkMode(mode LinkMode) Option {
	return func(o *options) {
		o.linkMode = mode
	}
}

// Repository maps tags to modules. Several tags may share one *Module.
type Repository struct {
	tags map[string]*Module
}

// Module returns the module tagged tag.
func (r *Repository) Module(tag string) (*Module, bool) {
	m, ok := r.tags[tag]
	return m, ok
}

// Tags returns the repository's tags in sorted order.
func (r *Repository) Tags() []string {
	tags := make([]string, 0, len(r.tags))
	for tag := range r.tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Index maps repository names to repositories.
type Index map[string]*Repository

// Registry is a loaded, immutable repository index.
type Registry struct {
	index Index
	root  string
}

type manifest struct {
	Repositories map[string]map[string]string `json:"repositories"`
}

// Load reads <root>/repositories.json and validates every module it names.
func Load(root string, opts ...Option) (*Registry, error) {
	o := options{linkMode: LinkLenient}
	for _, opt := range opts {
		opt(&o)
	}

	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound(errors.PhaseManifest, "registry root", root)
		}
		return nil, errors.IO(errors.PhaseManifest, "stat "+root, err)
	}

	manifestPath := filepath.Join(root, ManifestFile)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound(errors.PhaseManifest, "manifest", manifestPath)
		}
		return nil, errors.IO(errors.PhaseManifest, "read "+manifestPath, err)
	}

	var man manifest
	if err := json.Unmarshal(data, &man); err != nil {
		return nil, errors.IO(errors.PhaseManifest, "parse "+manifestPath, err)
	}

	log := Logger().With(zap.String("root", root))

	// Tags sharing a hash share one validated module; failures are remembered
	// so a broken bundle is hashed once.
	loaded := make(map[digest.Digest]*Module)
	failed := make(map[digest.Digest]error)

	index := make(Index, len(man.Repositories))
	for name, tags := range man.Repositories {
		repo := &Repository{tags: make(map[string]*Module, len(tags))}

		for tag, spec := range tags {
			fields := []zap.Field{zap.String("module", name), zap.String("tag", tag)}

			d, err := integrity.ParseHashSpec(spec)
			if err != nil {
				log.Warn("skipping tag with invalid hash", append(fields, zap.Error(err))...)
				continue
			}

			mod, ok := loaded[d]
			if !ok {
				if err, seen := failed[d]; seen {
					log.Warn("skipping tag with broken module", append(fields, zap.Error(err))...)
					continue
				}
				mod, err = LoadModule(root, d)
				if err != nil {
					failed[d] = err
					log.Warn("skipping tag with broken module", append(fields, zap.Error(err))...)
					continue
				}
				loaded[d] = mod
			}

			repo.tags[tag] = mod
		}
		index[name] = repo
	}

	if o.linkMode == LinkStrict {
		pruneUnresolvedLinks(index, log)
	}

	for name, repo := range index {
		if len(repo.tags) == 0 {
			log.Warn("dropping repository with no loadable modules", zap.String("module", name))
			delete(index, name)
		}
	}

	reg := &Registry{index: index, root: root}
	log.Info("registry loaded",
		zap.Int("repositories", len(index)),
		zap.Int("modules", len(loaded)),
		zap.Int("broken", len(failed)))
	return reg, nil
}

// pruneUnresolvedLinks removes tags whose links do not resolve to a loaded
// module. Removing a tag can break links to it, so it runs to a fixpoint.
func pruneUnresolvedLinks(index Index, log *zap.Logger) {
	for changed := true; changed; {
		changed = false
		for name, repo := range index {
			for tag, mod := range repo.tags {
				if err := checkLinks(mod, index); err != nil {
					log.Warn("skipping tag with unresolved link",
						zap.String("module", name), zap.String("tag", tag), zap.Error(err))
					delete(repo.tags, tag)
					changed = true
				}
			}
		}
	}
}

// checkLinks reports the first link that names a repository or tag missing
// from the loaded index.
func checkLinks(mod *Module, index Index) error {
	for _, link := range mod.Link {
		name, tag, hasTag := strings.Cut(link, ":")
		repo, ok := index[name]
		if !ok || len(repo.tags) == 0 {
			return errors.NotFound(errors.PhaseLoad, "linked module "+link, mod.Path)
		}
		if hasTag {
			if _, ok := repo.tags[tag]; !ok {
				return errors.NotFound(errors.PhaseLoad, "linked module "+link, mod.Path)
			}
		}
	}
	return nil
}

// Root returns the directory the registry was loaded from.
func (r *Registry) Root() string {
	return r.root
}

// GetModule looks up name:tag. It performs no I/O.
func (r *Registry) GetModule(name, tag string) (*Module, bool) {
	repo, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return repo.Module(tag)
}

// Repository returns the repository called name.
func (r *Registry) Repository(name string) (*Repository, bool) {
	repo, ok := r.index[name]
	return repo, ok
}

// Names returns the loaded repository names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.index))
	for name := range r.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of loaded repositories.
func (r *Registry) Len() int {
	return len(r.index)
}
