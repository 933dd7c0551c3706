package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panyam/jsmlc/diag"
)

func TestLoadImportGraph(t *testing.T) {
	l := NewMemoryLoader(map[string]string{
		"models/circuit.jsml": "import \"lib/electrical.jsml\"\nimport \"lib/units.jsml\"\ncomponent Circuit\nend\n",
		"models/lib/electrical.jsml": "import \"units.jsml\"\nconnector Pin\n  potential v::Voltage\n  flow i::Current\nend\n",
		"models/lib/units.jsml": "type Voltage = Real(units=\"V\")\ntype Current = Real(units=\"A\")\n",
	})
	res, err := l.LoadRootFile("models/circuit.jsml")
	require.NoError(t, err)
	assert.Equal(t, "models/circuit.jsml", res.RootFile.Path)
	// units is shared by both importers but loaded once, before its importers
	assert.Equal(t, []string{"models/lib/units.jsml", "models/lib/electrical.jsml", "models/circuit.jsml"}, res.Order)
	assert.Len(t, res.AllFiles(), 3)
	assert.Equal(t, "Pin", res.Files["models/lib/electrical.jsml"].Connectors()[0].Name())
}

func TestLoadImportCycle(t *testing.T) {
	l := NewMemoryLoader(map[string]string{
		"a.jsml": "import \"b.jsml\"\n",
		"b.jsml": "\nimport \"a.jsml\"\n",
	})
	_, err := l.LoadRootFile("a.jsml")
	require.Error(t, err)
	d := err.(*diag.Diagnostic)
	assert.Equal(t, diag.CyclicDefinitionError, d.Kind)
	assert.Equal(t, "b.jsml", d.File)
	assert.Equal(t, 2, d.Line)
	assert.Contains(t, d.Message, "a.jsml -> b.jsml -> a.jsml")
}

func TestLoadSelfImport(t *testing.T) {
	l := NewMemoryLoader(map[string]string{"a.jsml": "import \"./a.jsml\"\n"})
	_, err := l.LoadRootFile("a.jsml")
	require.Error(t, err)
	assert.Equal(t, diag.CyclicDefinitionError, err.(*diag.Diagnostic).Kind)
}

func TestLoadMissingImport(t *testing.T) {
	l := NewMemoryLoader(map[string]string{"a.jsml": "type X = Real\nimport \"missing.jsml\"\n"})
	_, err := l.LoadRootFile("a.jsml")
	require.Error(t, err)
	d := err.(*diag.Diagnostic)
	assert.Equal(t, diag.IOError, d.Kind)
	assert.Equal(t, "a.jsml", d.File)
	assert.Equal(t, 2, d.Line)
	assert.Contains(t, d.Message, "missing.jsml")
}

func TestLoadMissingRoot(t *testing.T) {
	_, err := NewMemoryLoader(nil).LoadRootFile("nope.jsml")
	require.Error(t, err)
	assert.Equal(t, diag.IOError, err.(*diag.Diagnostic).Kind)
}

func TestLoadSyntaxErrorInImport(t *testing.T) {
	l := NewMemoryLoader(map[string]string{
		"a.jsml": "import \"b.jsml\"\n",
		"b.jsml": "component\n",
	})
	_, err := l.LoadRootFile("a.jsml")
	require.Error(t, err)
	d := err.(*diag.Diagnostic)
	assert.Equal(t, diag.SyntaxError, d.Kind)
	assert.Equal(t, "b.jsml", d.File)
}

func TestLoadMaxDepth(t *testing.T) {
	fs := NewMemoryFS()
	fs.PreloadFiles(map[string]string{
		"a.jsml": "import \"b.jsml\"\n",
		"b.jsml": "import \"c.jsml\"\n",
		"c.jsml": "type X = Real\n",
	})
	l := NewLoader(ParserFunc(parseFile), NewFSResolver(fs), 2)
	_, err := l.LoadRootFile("a.jsml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max import depth (2)")

	l = NewLoader(ParserFunc(parseFile), NewFSResolver(fs), 3)
	_, err = l.LoadRootFile("a.jsml")
	assert.NoError(t, err)
}

func TestLoadNormalizesSource(t *testing.T) {
	// "Re" + combining acute accent only lexes as an identifier once composed
	l := NewMemoryLoader(map[string]string{"a.jsml": "component Re\u0301sistor\nend\n"})
	res, err := l.LoadRootFile("a.jsml")
	require.NoError(t, err)
	assert.Equal(t, "R\u00e9sistor", res.RootFile.Components()[0].Name())
}

func TestLoadFromDisk(t *testing.T) {
	dir := t.TempDir()
	local := NewLocalFS(dir)
	require.NoError(t, local.WriteFile("lib/units.jsml", []byte("type Voltage = Real(units=\"V\")\n")))
	require.NoError(t, local.WriteFile("main.jsml", []byte("import \"lib/units.jsml\"\n")))
	assert.True(t, local.Exists("main.jsml"))

	files, err := local.ListFiles(".")
	require.NoError(t, err)
	assert.Equal(t, []string{"main.jsml"}, files)

	res, err := NewFileLoader().LoadRootFile(filepath.Join(dir, "main.jsml"))
	require.NoError(t, err)
	require.Len(t, res.Order, 2)
	abs, _ := filepath.Abs(filepath.Join(dir, "lib", "units.jsml"))
	assert.Equal(t, abs, res.Order[0])
	_, err = os.Stat(res.Order[1])
	assert.NoError(t, err)
}

func TestCompositeFS(t *testing.T) {
	std := NewMemoryFS()
	std.PreloadFiles(map[string]string{"units.jsml": "type Voltage = Real\n"})
	work := NewMemoryFS()
	work.PreloadFiles(map[string]string{"model.jsml": "import \"std/units.jsml\"\n"})

	fs := NewCompositeFS()
	fs.Mount("std/", std)
	fs.SetFallback(work)
	assert.True(t, fs.Exists("std/units.jsml"))
	assert.False(t, fs.Exists("units.jsml"))
	assert.True(t, fs.Mounted("std/units.jsml"))
	assert.False(t, fs.Mounted("model.jsml"))

	require.NoError(t, fs.WriteFile("std/pins.jsml", []byte("connector Pin\nend\n")))
	assert.True(t, std.Exists("pins.jsml"))
	files, err := fs.ListFiles("std/")
	require.NoError(t, err)
	assert.Equal(t, []string{"std/pins.jsml", "std/units.jsml"}, files)

	l := NewLoader(ParserFunc(parseFile), NewFSResolver(fs), 0)
	res, err := l.LoadRootFile("model.jsml")
	require.NoError(t, err)
	assert.Equal(t, []string{"std/units.jsml", "model.jsml"}, res.Order)
}

func TestLibraryImports(t *testing.T) {
	electrical := NewMemoryFS()
	electrical.PreloadFiles(map[string]string{
		"pins.jsml":  "import \"units.jsml\"\nconnector Pin\n  potential v::Voltage\n  flow i::Current\nend\n",
		"units.jsml": "type Voltage = Real(units=\"V\")\ntype Current = Real(units=\"A\")\n",
		"bad.jsml":   "import \"../escape.jsml\"\n",
	})
	lib := Library{Name: "electrical", FS: electrical}
	sources := map[string]string{
		"models/circuit.jsml": "import \"electrical/pins.jsml\"\nimport \"local.jsml\"\n",
		"models/local.jsml":   "import \"electrical/units.jsml\"\n",
	}

	res, err := NewMemoryLoader(sources, lib).LoadRootFile("models/circuit.jsml")
	require.NoError(t, err)
	assert.Equal(t, []string{"electrical/units.jsml", "electrical/pins.jsml", "models/local.jsml", "models/circuit.jsml"}, res.Order)
	assert.Contains(t, res.Sources["electrical/pins.jsml"], "connector Pin")

	name, rest, ok := SplitLibraryPath("electrical/pins.jsml", []Library{lib})
	assert.True(t, ok)
	assert.Equal(t, "electrical", name)
	assert.Equal(t, "pins.jsml", rest)
	_, _, ok = SplitLibraryPath("models/local.jsml", []Library{lib})
	assert.False(t, ok)

	// without the library the import is an ordinary relative path
	_, err = NewMemoryLoader(sources).LoadRootFile("models/circuit.jsml")
	require.Error(t, err)
	assert.Equal(t, diag.IOError, diag.From(err)[0].Kind)

	sources["models/escape.jsml"] = "import \"electrical/bad.jsml\"\n"
	_, err = NewMemoryLoader(sources, lib).LoadRootFile("models/escape.jsml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leaves library electrical")
}

func TestParseLibraries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "units.jsml"), []byte("type Voltage = Real(units=\"V\")\n"), 0o644))
	main := filepath.Join(t.TempDir(), "main.jsml")
	require.NoError(t, os.WriteFile(main, []byte("import \"std/units.jsml\"\n"), 0o644))

	libs, err := ParseLibraries("std=" + dir)
	require.NoError(t, err)
	res, err := NewFileLoader(libs...).LoadRootFile(main)
	require.NoError(t, err)
	assert.Equal(t, "std/units.jsml", res.Order[0])

	for _, spec := range []string{"std", "=dir", "std=", "a/b=dir"} {
		_, err := ParseLibraries(spec)
		assert.ErrorContains(t, err, "want name=dir", spec)
	}
}
