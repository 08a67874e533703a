package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/loregate/internal/ir"
)

// LoadDir builds the CUE package in dir and decodes it into a library.
// Errors from loading or building the instance are returned alone; decode
// errors are collected as in CompileLibrary.
func LoadDir(dir string) (*ir.Library, []error) {
	insts := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(insts) == 0 {
		return nil, []error{&CompileError{Field: "load", Message: "no CUE instances loaded from " + dir}}
	}
	if err := insts[0].Err; err != nil {
		return nil, []error{&CompileError{Field: "load", Message: err.Error()}}
	}

	v := cuecontext.New().BuildInstance(insts[0])
	return CompileLibrary(v)
}

// LoadFile reads a single library document: a .cue file or the JSON form.
func LoadFile(path string) (*ir.Library, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{fmt.Errorf("read library: %w", err)}
	}

	switch filepath.Ext(path) {
	case ".json":
		lib, err := DecodeLibraryJSON(data)
		if err != nil {
			return nil, []error{err}
		}
		return lib, nil
	case ".cue":
		v := cuecontext.New().CompileBytes(data, cue.Filename(path))
		return CompileLibrary(v)
	default:
		return nil, []error{&CompileError{
			Field:   "load",
			Message: fmt.Sprintf("unsupported library file %q (want .cue or .json)", path),
		}}
	}
}

// Load reads a library from a CUE package directory or a single file.
func Load(path string) (*ir.Library, []error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, []error{fmt.Errorf("library path: %w", err)}
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}

// LoadAndCompile loads a library, rejects it on any decode or shape error and
// compiles it. Shape errors are returned as a *ShapeErrors.
func LoadAndCompile(path string) (*ir.Procedure, error) {
	lib, errs := Load(path)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if shape := Validate(lib); len(shape) > 0 {
		return nil, &ShapeErrors{Errors: shape}
	}
	return Compile(lib)
}

// ShapeErrors bundles the shape errors of a rejected library.
type ShapeErrors struct {
	Errors []RuleShapeError
}

func (e *ShapeErrors) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", e.Errors[0].Error(), len(e.Errors)-1)
}
