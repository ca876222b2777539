// Package loader executes an import plan against a configuration tree and
// feeds the decoded fragments, in order, to the container and route sinks.
package loader

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/artpar/appkernel/core/container"
	"github.com/artpar/appkernel/domain/kernel"
	"github.com/artpar/appkernel/ports"
)

var (
	// ErrResourceNotFound is returned when a required file does not exist.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrCircularImport is returned when imports: keys form a cycle.
	ErrCircularImport = errors.New("circular import")
)

// whenPrefix marks environment-conditional sections of a fragment.
const whenPrefix = "when@"

// ImportError describes a failed import.
type ImportError struct {
	Import kernel.Import
	File   string // empty when the failure is not tied to one file
	Err    error
}

func (e *ImportError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("import %s %s: %v", e.Import.Kind, e.Import.Resource, e.Err)
	}
	return fmt.Sprintf("import %s %s: %s: %v", e.Import.Kind, e.Import.Resource, e.File, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// Step records the outcome of one import.
type Step struct {
	Import   kernel.Import
	Files    []string // matched files, relative to the configuration root
	Imported []string // files pulled in through imports: keys
	Skipped  bool     // optional file that did not exist
}

// Trace is the ordered record of a loader run.
type Trace []Step

// Files returns every file loaded, in load order.
func (t Trace) Files() []string {
	var out []string
	for _, s := range t {
		out = append(out, s.Imported...)
		out = append(out, s.Files...)
	}
	return out
}

// Loader runs import plans. It is not safe for concurrent use.
type Loader struct {
	locator ports.Locator
	reader  ports.FragmentReader
	env     string
	logger  zerolog.Logger
}

// New creates a loader for env.
func New(locator ports.Locator, reader ports.FragmentReader, env string, logger zerolog.Logger) *Loader {
	return &Loader{
		locator: locator,
		reader:  reader,
		env:     env,
		logger:  logger.With().Str("component", "loader").Logger(),
	}
}

// Run executes plan in order. Container imports go to containerSink and
// route imports to routeSink. The first failure aborts the run; the
// returned trace covers the imports completed before it.
func (l *Loader) Run(plan []kernel.Import, containerSink, routeSink ports.Sink) (Trace, error) {
	trace := make(Trace, 0, len(plan))

	for _, imp := range plan {
		sink := containerSink
		if imp.Target == kernel.TargetRoutes {
			sink = routeSink
		}

		step, err := l.runImport(imp, sink)
		if err != nil {
			return trace, err
		}
		trace = append(trace, step)
	}

	return trace, nil
}

func (l *Loader) runImport(imp kernel.Import, sink ports.Sink) (Step, error) {
	step := Step{Import: imp}

	var paths []string
	switch imp.Kind {
	case kernel.KindGlob:
		matches, err := l.locator.Glob(imp.Resource)
		if err != nil {
			return step, &ImportError{Import: imp, Err: err}
		}
		paths = matches
	case kernel.KindFile, kernel.KindOptional:
		p := l.locator.Path(imp.Resource)
		ok, err := l.locator.Exists(p)
		if err != nil {
			return step, &ImportError{Import: imp, File: l.rel(p), Err: err}
		}
		if !ok {
			if imp.Kind == kernel.KindFile {
				return step, &ImportError{Import: imp, File: l.rel(p), Err: ErrResourceNotFound}
			}
			step.Skipped = true
			l.logger.Debug().Str("resource", imp.Resource).Msg("optional resource skipped")
			return step, nil
		}
		paths = []string{p}
	default:
		return step, &ImportError{Import: imp, Err: fmt.Errorf("unknown import kind %d", imp.Kind)}
	}

	for _, p := range paths {
		imported, err := l.loadFile(p, imp.Target, sink, nil)
		if err != nil {
			return step, &ImportError{Import: imp, File: l.rel(p), Err: err}
		}
		step.Imported = append(step.Imported, imported...)
		step.Files = append(step.Files, l.rel(p))
	}

	l.logger.Debug().
		Str("target", imp.Target.String()).
		Str("kind", imp.Kind.String()).
		Str("resource", imp.Resource).
		Int("files", len(step.Files)).
		Msg("import complete")

	return step, nil
}

// loadFile reads, filters and merges one file. Files named in its imports
// key are merged first. It returns the relative paths of those nested files.
func (l *Loader) loadFile(p string, target kernel.Target, sink ports.Sink, stack []string) ([]string, error) {
	for _, s := range stack {
		if s == p {
			return nil, fmt.Errorf("%w: %s", ErrCircularImport, strings.Join(append(l.relAll(stack), l.rel(p)), " -> "))
		}
	}

	doc, err := l.reader.Read(p)
	if err != nil {
		return nil, err
	}

	doc, err = applyWhen(doc, l.env)
	if err != nil {
		return nil, err
	}

	var imported []string
	if target == kernel.TargetContainer {
		entries, err := parseImports(doc[container.KeyImports])
		if err != nil {
			return nil, err
		}
		delete(doc, container.KeyImports)

		for _, entry := range entries {
			files, err := l.importEntry(p, entry, target, sink, append(stack, p))
			if err != nil {
				return nil, err
			}
			imported = append(imported, files...)
		}
	}

	if err := sink.Merge(l.rel(p), doc); err != nil {
		return nil, err
	}
	return imported, nil
}

func (l *Loader) importEntry(from string, entry importEntry, target kernel.Target, sink ports.Sink, stack []string) ([]string, error) {
	resource := filepath.FromSlash(entry.resource)
	if !filepath.IsAbs(resource) {
		resource = filepath.Join(filepath.Dir(from), resource)
	}

	var paths []string
	if strings.ContainsAny(entry.resource, "*?[") {
		// The locator joins relative patterns onto its root; an absolute
		// pattern passes through unchanged.
		matches, err := l.locator.Glob(filepath.ToSlash(resource))
		if err != nil {
			return nil, err
		}
		paths = matches
	} else {
		ok, err := l.locator.Exists(resource)
		if err != nil {
			return nil, err
		}
		if !ok {
			if entry.ignoreMissing {
				l.logger.Debug().Str("resource", entry.resource).Str("from", l.rel(from)).Msg("ignored missing import")
				return nil, nil
			}
			return nil, fmt.Errorf("import %s: %w", entry.resource, ErrResourceNotFound)
		}
		paths = []string{resource}
	}

	var loaded []string
	for _, p := range paths {
		nested, err := l.loadFile(p, target, sink, stack)
		if err != nil {
			if entry.ignoreAll && !errors.Is(err, ErrCircularImport) {
				l.logger.Warn().Err(err).Str("resource", l.rel(p)).Msg("ignored failing import")
				continue
			}
			return nil, err
		}
		loaded = append(loaded, nested...)
		loaded = append(loaded, l.rel(p))
	}
	return loaded, nil
}

// rel returns p relative to the configuration root, slash-separated.
func (l *Loader) rel(p string) string {
	r, err := filepath.Rel(l.locator.Root(), p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return path.Clean(filepath.ToSlash(r))
}

func (l *Loader) relAll(ps []string) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = l.rel(p)
	}
	return out
}

// applyWhen merges the when@<env> section into doc and drops every other
// when@ section.
func applyWhen(doc map[string]any, env string) (map[string]any, error) {
	var keys []string
	for k := range doc {
		if strings.HasPrefix(k, whenPrefix) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return doc, nil
	}
	sort.Strings(keys)

	var body map[string]any
	for _, k := range keys {
		if k == whenPrefix+env && doc[k] != nil {
			m, ok := doc[k].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s must be a mapping, got %T", k, doc[k])
			}
			body = m
		}
		delete(doc, k)
	}
	if body == nil {
		return doc, nil
	}
	return container.DeepMerge(doc, body), nil
}
