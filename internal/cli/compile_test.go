package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loregate/internal/compiler"
)

func writeLibrary(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.cue"), []byte(src), 0o644))
	return dir
}

func TestCompileLibrary(t *testing.T) {
	out, err := execute(t, "compile", loreDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 6 unit(s)")
	assert.Contains(t, out, "2 entr(ies)")
	assert.Contains(t, out, "stage:emotion")
	assert.Contains(t, out, "entry:harbor")
	assert.Contains(t, out, "scoring:visits")
}

func TestCompileLibraryJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "compile", loreDir)
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Units, 6)
	assert.NotEmpty(t, resp.Data.Hash)

	keys := make([]string, len(resp.Data.Units))
	for i, u := range resp.Data.Units {
		keys[i] = u.Key
	}
	assert.Equal(t, []string{
		"stage:emotion", "stage:intent", "stage:vibe",
		"entry:harbor", "entry:smuggler", "scoring:visits",
	}, keys)
}

func TestCompileOutputToFile(t *testing.T) {
	output := filepath.Join(t.TempDir(), "procedure.json")

	out, err := execute(t, "compile", loreDir, "-o", output)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote procedure to "+output)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	proc, err := compiler.Import(data)
	require.NoError(t, err)

	fresh, err := compiler.LoadAndCompile(loreDir)
	require.NoError(t, err)
	assert.Equal(t, fresh.Hash, proc.Hash)
}

func TestCompileWriteFailure(t *testing.T) {
	output := filepath.Join(t.TempDir(), "missing", "procedure.json")

	out, err := execute(t, "compile", loreDir, "-o", output)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeWriteFailed)
}

func TestCompileNonExistentPath(t *testing.T) {
	out, err := execute(t, "compile", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestCompileEmptyDirectory(t *testing.T) {
	out, err := execute(t, "compile", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, out, ErrCodeNoFiles)
}

func TestCompileShapeErrors(t *testing.T) {
	dir := writeLibrary(t, `
stage: emotion: signals: [{keywords: ["glad"], emit: "GLEE"}]
stage: intent: {}
stage: vibe: {}
entry: rain: {probability: 150, keywords: ["rain"]}
`)

	out, err := execute(t, "--format", "json", "compile", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Error  CLIError   `json:"error"`
		Data   []CLIError `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, compiler.ErrUnknownEmotion, resp.Data[0].Code)
	assert.Equal(t, compiler.ErrProbabilityRange, resp.Data[1].Code)
	assert.Equal(t, resp.Data[0], resp.Error)
}

func TestCompileDecodeError(t *testing.T) {
	dir := writeLibrary(t, `
stage: emotion: {}
stage: intent: {}
stage: vibe: {}
entry: rain: {keywords: ["rain"], colour: "grey"}
`)

	out, err := execute(t, "compile", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ Compilation failed")
	assert.Contains(t, out, ErrCodeDecodeFailed)
	assert.Contains(t, out, "entry.rain")
}

func TestCompileVerboseOutput(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{"-v", "--format", "json", "compile", loreDir})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, errOut.String(), "Loaded 1 file(s)")
	assert.Contains(t, errOut.String(), "Compiled entry:harbor")

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out.String()), &resp), "verbose logs must not corrupt JSON")
}

func TestFindCUEFiles(t *testing.T) {
	files, err := FindCUEFiles(loreDir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(loreDir, "lore.cue")}, files)

	_, err = FindCUEFiles(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"load", ErrCodeLoadFailed},
		{"cue", ErrCodeBuildFailed},
		{"entry.rain.cue", ErrCodeBuildFailed},
		{"entry.rain.decode", ErrCodeDecodeFailed},
		{"chain.mood.id", ErrCodeDecodeFailed},
		{"stage", compiler.ErrInvalidStage},
		{"something", ErrCodeGeneric},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field), tt.field)
	}
}

func TestLoadLibrary(t *testing.T) {
	res, errs := LoadLibrary(loreDir)
	require.Empty(t, errs)
	assert.Equal(t, 1, res.FileCount)
	assert.Len(t, res.Library.Entries, 2)

	res, errs = LoadLibrary(filepath.Join(loreDir, "lore.cue"))
	require.Empty(t, errs)
	assert.Equal(t, 1, res.FileCount)
	assert.Len(t, res.Library.Scoring, 1)

	txt := filepath.Join(t.TempDir(), "lore.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o644))
	res, errs = LoadLibrary(txt)
	assert.Nil(t, res)
	require.Len(t, errs, 1)
	var loadErr *LoadError
	require.ErrorAs(t, errs[0], &loadErr)
	assert.Equal(t, ErrCodeLoadFailed, loadErr.Code)
}
