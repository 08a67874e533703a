package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/loregate/internal/compiler"
	"github.com/roach88/loregate/internal/ir"
)

// LoadResult is a decoded library and where it came from.
type LoadResult struct {
	Library   *ir.Library
	Path      string
	FileCount int // CUE files found for a package directory, 1 for a single file
}

// LoadError represents an error that occurred during library loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadLibrary reads a library from a CUE package directory, a .cue file or
// the JSON library document. Decode errors are all collected; a nil result
// means nothing could be loaded at all.
func LoadLibrary(path string) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("library not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing library: %v", err)}}
	}

	result := &LoadResult{Path: path, FileCount: 1}
	if info.IsDir() {
		cueFiles, err := FindCUEFiles(path)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
		}
		if len(cueFiles) == 0 {
			return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}}
		}
		result.FileCount = len(cueFiles)
	}

	lib, errs := compiler.Load(path)
	if lib == nil {
		return nil, convertLoadErrors(errs)
	}
	result.Library = lib
	return result, convertLoadErrors(errs)
}

// FindCUEFiles returns the .cue files directly inside dir, the files of the
// package CUE loads from it.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

func convertLoadErrors(errs []error) []error {
	if len(errs) == 0 {
		return nil
	}
	out := make([]error, len(errs))
	for i, err := range errs {
		out[i] = convertCompileError(err)
	}
	return out
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Field + ": " + compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// Error code constants, shared by every command. Shape errors reuse the
// E1xx codes of compiler.Validate.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeScanError    = "E002" // Directory scan error
	ErrCodeNoFiles      = "E003" // No CUE files found
	ErrCodeLoadFailed   = "E004" // CUE load failed or unsupported file
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeBuildFailed  = "E006" // CUE evaluation failed
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeDecodeFailed = "E008" // Rule did not decode into the library schema
)

// MapFieldToErrorCode maps a compiler error field to an error code. Fields
// are rule paths such as "entry.rain.decode"; the last segment decides.
func MapFieldToErrorCode(field string) string {
	last := field
	if i := strings.LastIndex(field, "."); i >= 0 {
		last = field[i+1:]
	}
	switch last {
	case "load":
		return ErrCodeLoadFailed
	case "cue":
		return ErrCodeBuildFailed
	case "decode", "id":
		return ErrCodeDecodeFailed
	case "stage":
		return compiler.ErrInvalidStage
	default:
		return ErrCodeGeneric
	}
}
