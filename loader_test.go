package strata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileTOML(t *testing.T) {
	path := writeTempConfig(t, "app.toml", `
name = "svc"
[server]
host = "0.0.0.0"
port = 8080
tls = false
timeouts = [5, 10]
`)
	s := newTestStore(t)
	require.NoError(t, s.LoadFile(path))

	name, err := s.String("name")
	require.NoError(t, err)
	assert.Equal(t, "svc", name)

	port, err := s.Int64("server.port")
	require.NoError(t, err)
	assert.Equal(t, int64(8080), port)

	tls, err := s.Bool("server.tls")
	require.NoError(t, err)
	assert.False(t, tls)

	timeouts, ok := s.Get("server.timeouts")
	require.True(t, ok, "arrays are stored whole, not index-flattened")
	arr, ok := timeouts.Array()
	require.True(t, ok)
	require.Len(t, arr, 2)
	first, _ := arr[0].Int()
	assert.Equal(t, int64(5), first)

	src, ok := s.GetSource("server.port")
	require.True(t, ok)
	assert.Equal(t, SourceFile, src.Kind())
	assert.Equal(t, path, src.Name())
}

func TestLoadFileYAML(t *testing.T) {
	path := writeTempConfig(t, "app.yaml", `
db:
  host: localhost
  pool: 12
features:
  - alpha
  - beta
`)
	s := newTestStore(t)
	require.NoError(t, s.LoadFile(path))

	host, err := s.String("db.host")
	require.NoError(t, err)
	assert.Equal(t, "localhost", host)

	features, ok := s.Get("features")
	require.True(t, ok)
	arr, ok := features.Array()
	require.True(t, ok)
	require.Len(t, arr, 2)
	second, _ := arr[1].Str()
	assert.Equal(t, "beta", second)
}

func TestLoadFileJSON(t *testing.T) {
	path := writeTempConfig(t, "app.json", `{"limits": {"rate": 2.5, "burst": 100}}`)
	s := newTestStore(t)
	require.NoError(t, s.LoadFile(path))

	rate, err := s.Float64("limits.rate")
	require.NoError(t, err)
	assert.Equal(t, 2.5, rate)

	burst, err := s.Int64("limits.burst")
	require.NoError(t, err)
	assert.Equal(t, int64(100), burst)
}

func TestLoadFileFormatFromContent(t *testing.T) {
	// No recognized extension: detection falls back to parsing.
	path := writeTempConfig(t, "app.conf", `{"a": 1}`)
	s := newTestStore(t)
	require.NoError(t, s.LoadFile(path))
	v, err := s.Int64("a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestLoadFileMissing(t *testing.T) {
	s := newTestStore(t)
	err := s.LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)

	assert.NoError(t, s.LoadOptionalFile(filepath.Join(t.TempDir(), "absent.toml")))
}

func TestLoadFileRejectsNonTable(t *testing.T) {
	path := writeTempConfig(t, "scalar.json", `42`)
	s := newTestStore(t)
	assert.Error(t, s.LoadFile(path))
}

func TestLoadFileLaterWins(t *testing.T) {
	base := writeTempConfig(t, "base.toml", "port = 1\nname = \"base\"\n")
	override := writeTempConfig(t, "override.toml", "port = 2\n")
	s := newTestStore(t)
	require.NoError(t, s.LoadFile(base))
	require.NoError(t, s.LoadFile(override))

	port, err := s.Int64("port")
	require.NoError(t, err)
	assert.Equal(t, int64(2), port, "later file wins per leaf")
	name, err := s.String("name")
	require.NoError(t, err)
	assert.Equal(t, "base", name, "keys absent from the later file survive")
}

func TestLoadFileExtractsProviderItems(t *testing.T) {
	payload := writeTempConfig(t, "payload.txt", "remote data")
	path := writeTempConfig(t, "app.yaml", `
static: 1
remote:
  blob:
    .provider: file
    path: `+payload+`
`)
	s := newTestStore(t)
	require.NoError(t, s.LoadFile(path))

	assert.False(t, s.Exists("remote.blob"), "provider items are extracted, not stored")
	assert.False(t, s.PrefixExists("remote.blob"))

	p := NewFileValueProvider(nil)
	s.SetValueProvider("file", p, 0)

	v, ok := s.Get("remote.blob")
	require.True(t, ok, "item .keyPath must be stamped from its position in the file")
	got, _ := v.Str()
	assert.Equal(t, "remote data", got)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("STRATATEST_SERVER_PORT", "9090")
	t.Setenv("STRATATEST_SERVER_TLS", "true")
	t.Setenv("STRATATEST_NAME", "from-env")
	t.Setenv("STRATATEST_RATE", "0.5")
	t.Setenv("OTHERAPP_IGNORED", "x")

	s := newTestStore(t)
	require.NoError(t, s.LoadEnv("STRATATEST_"))

	port, err := s.Int64("server.port")
	require.NoError(t, err)
	assert.Equal(t, int64(9090), port)

	tls, err := s.Bool("server.tls")
	require.NoError(t, err)
	assert.True(t, tls)

	name, err := s.String("name")
	require.NoError(t, err)
	assert.Equal(t, "from-env", name)

	rate, err := s.Float64("rate")
	require.NoError(t, err)
	assert.Equal(t, 0.5, rate)

	assert.False(t, s.Exists("ignored"))

	src, ok := s.GetSource("server.port")
	require.True(t, ok)
	assert.Equal(t, SourceEnv, src.Kind())
	assert.Equal(t, "STRATATEST_SERVER_PORT", src.Name())
}

func TestLoadEnvBadKey(t *testing.T) {
	// A double underscore converts to an empty segment.
	t.Setenv("STRATABAD__X", "1")
	t.Setenv("STRATABAD_OK", "2")

	s := newTestStore(t)
	err := s.LoadEnv("STRATABAD_")
	assert.ErrorIs(t, err, ErrBadEnvKey)

	// Valid variables from the same scan still merge.
	ok, err2 := s.Int64("ok")
	require.NoError(t, err2)
	assert.Equal(t, int64(2), ok)
}

func TestSetFromInterface(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetFromInterface("svc", map[string]any{
		"host":  "h",
		"ports": []any{1, 2},
	}, SetSource()))

	host, err := s.String("svc.host")
	require.NoError(t, err)
	assert.Equal(t, "h", host)

	ports, ok := s.Get("svc.ports")
	require.True(t, ok)
	arr, ok := ports.Array()
	require.True(t, ok)
	second, _ := arr[1].Int()
	assert.Equal(t, int64(2), second)
}

func TestParseScalar(t *testing.T) {
	tests := []struct {
		raw  string
		want Value
	}{
		{"true", BoolValue(true)},
		{"false", BoolValue(false)},
		{"42", IntValue(42)},
		{"-7", IntValue(-7)},
		{"2.5", FloatValue(2.5)},
		{"hello", StringValue("hello")},
		{"", StringValue("")},
		{"True", StringValue("True")}, // only lowercase literals convert
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.True(t, tt.want.Equal(parseScalar(tt.raw)))
		})
	}
}

func TestDetectFileFormat(t *testing.T) {
	assert.Equal(t, "toml", detectFileFormat("x.toml"))
	assert.Equal(t, "toml", detectFileFormat("x.TML"))
	assert.Equal(t, "yaml", detectFileFormat("x.yml"))
	assert.Equal(t, "json", detectFileFormat("x.json"))
	assert.Equal(t, "", detectFileFormat("x.conf"))
}
