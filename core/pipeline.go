package core

import (
	"go/token"

	log "github.com/sirupsen/logrus"
)

// Expansion records one rewritten site.
type Expansion struct {
	File  string
	Pos   token.Position
	Kind  Kind
	Owner TypeID
	Name  string
}

type Result struct {
	Registry   *Registry
	Expansions []Expansion
	// Changed lists the files modified by any stage, in program order.
	Changed []*File

	changed map[*File]bool
	imports *ImportResolver
}

func (r *Result) markChanged(f *File) {
	r.changed[f] = true
}

func (r *Result) record(f *File, e Expansion) {
	r.Expansions = append(r.Expansions, e)
	r.markChanged(f)
}

// session is the state of one pass over a program. The registry is written
// by the define stage only; the import resolver is filled while rewriting and
// drained at the end.
type session struct {
	cfg      Config
	prog     *Program
	registry *Registry
	imports  *ImportResolver
	result   *Result
}

type Expander struct {
	cfg Config
}

func NewExpander(cfg Config) (*Expander, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Expander{cfg: cfg}, nil
}

type stage struct {
	name string
	run  func(*File) error
	done func()
}

// Expand runs every stage over every file of prog before moving on to the
// next stage, since a macro may be used by a file visited before the one
// defining it. The first error aborts the pass; prog must then be discarded.
func (e *Expander) Expand(prog *Program) (*Result, error) {
	registry := NewRegistry(e.cfg.Expand.StrictDuplicates)
	imports := NewImportResolver(e.cfg.Expand.AliasPrefix)
	s := &session{
		cfg:      e.cfg,
		prog:     prog,
		registry: registry,
		imports:  imports,
		result: &Result{
			Registry: registry,
			changed:  map[*File]bool{},
			imports:  imports,
		},
	}

	stages := []stage{
		{name: "define", run: s.extract, done: registry.Seal},
		{name: "scrub", run: s.scrub},
		{name: "rewrite", run: s.rewrite},
	}

	files := prog.Files()
	for _, st := range stages {
		log.Debugf("running %s stage on %d files", st.name, len(files))
		for _, f := range files {
			if err := st.run(f); err != nil {
				return nil, err
			}
		}
		if st.done != nil {
			st.done()
		}
	}

	for _, f := range s.imports.Emit() {
		s.result.markChanged(f)
	}

	for _, f := range files {
		if s.result.changed[f] {
			s.result.Changed = append(s.result.Changed, f)
		}
	}

	s.logMacros()
	return s.result, nil
}

// Imports exposes the import requests made for f during the last Expand.
func (r *Result) Imports(f *File) []ImportRequest {
	if r.imports == nil {
		return nil
	}
	return r.imports.Requests(f)
}

func (s *session) logMacros() {
	for _, owner := range s.registry.Owners() {
		for _, m := range s.registry.Macros(owner, CallMacro) {
			log.Infof("Found call macro %s from %s", m.Name, m.File.Name)
		}
		for _, m := range s.registry.Macros(owner, PropMacro) {
			log.Infof("Found property macro %s from %s", m.Name, m.File.Name)
		}
	}
}
