package compiler

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/axisenergy/checklist/internal/ir"
)

// LoadMode controls how errors are handled while compiling a catalogue.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Catalogue is the set of programs compiled from one CUE source.
type Catalogue struct {
	Programs  []*ir.ProgramSpec
	FileCount int
}

// Slugs returns the program slugs in declaration order.
func (c *Catalogue) Slugs() []string {
	slugs := make([]string, len(c.Programs))
	for i, p := range c.Programs {
		slugs[i] = p.Slug
	}
	return slugs
}

// CompileValue extracts every program under the top-level program field
// of root. Programs that fail to compile are reported as errors; in
// LoadModeFailFast the first error ends the walk.
func CompileValue(root cue.Value, mode LoadMode) ([]*ir.ProgramSpec, []error) {
	if err := root.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	programsVal := root.LookupPath(cue.ParsePath("program"))
	if !programsVal.Exists() {
		return nil, []error{&CompileError{Field: "program", Message: "no programs found"}}
	}

	iter, err := programsVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var (
		specs []*ir.ProgramSpec
		errs  []error
	)
	for iter.Next() {
		spec, err := CompileProgram(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("program %q: %w", iter.Selector().Unquoted(), err))
			if mode == LoadModeFailFast {
				return specs, errs
			}
			continue
		}
		specs = append(specs, spec)
	}
	return specs, errs
}

// CompileBytes compiles the programs declared in one CUE source file.
func CompileBytes(filename string, data []byte) ([]*ir.ProgramSpec, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	specs, errs := CompileValue(v, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return specs, nil
}

// CompileFile compiles the programs declared in the CUE file at path.
func CompileFile(filename string) ([]*ir.ProgramSpec, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return CompileBytes(filename, data)
}

// CompileDir loads the CUE package in dir and compiles every program in it.
// Files in the directory are unified, so one program may be split across
// several files.
func CompileDir(dir string, mode LoadMode) (*Catalogue, []error) {
	files, err := FindCUEFiles(os.DirFS(dir))
	if err != nil {
		return nil, []error{fmt.Errorf("scan %s: %w", dir, err)}
	}
	if len(files) == 0 {
		return nil, []error{fmt.Errorf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{fmt.Errorf("no CUE instances loaded from %s", dir)}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{fmt.Errorf("loading CUE files: %w", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	specs, errs := CompileValue(value, mode)
	return &Catalogue{Programs: specs, FileCount: len(files)}, errs
}

// CompileFS compiles every .cue file in fsys (recursively) into a single
// unified value. Used for catalogues embedded with go:embed, where the
// CUE loader cannot reach the files.
func CompileFS(fsys fs.FS, mode LoadMode) (*Catalogue, []error) {
	files, err := FindCUEFiles(fsys)
	if err != nil {
		return nil, []error{fmt.Errorf("scan catalogue: %w", err)}
	}
	if len(files) == 0 {
		return nil, []error{fmt.Errorf("no CUE files found in catalogue")}
	}

	ctx := cuecontext.New()
	var root cue.Value
	for i, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, []error{fmt.Errorf("read %s: %w", name, err)}
		}
		v := ctx.CompileBytes(data, cue.Filename(name))
		if err := v.Err(); err != nil {
			return nil, []error{formatCUEError(err)}
		}
		if i == 0 {
			root = v
		} else {
			root = root.Unify(v)
		}
	}

	specs, errs := CompileValue(root, mode)
	return &Catalogue{Programs: specs, FileCount: len(files)}, errs
}

// FindCUEFiles walks fsys and returns all .cue file paths, sorted.
func FindCUEFiles(fsys fs.FS) ([]string, error) {
	var files []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && path.Ext(p) == ".cue" {
			files = append(files, p)
		}
		return nil
	})
	slices.Sort(files)
	return files, err
}
