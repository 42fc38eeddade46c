package input

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muralikrish9/cyberroomba/pkg/model"
)

func TestStringSliceFlag(t *testing.T) {
	var vals StringSliceFlag
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&vals, "t", "targets")

	require.NoError(t, fs.Parse([]string{"-t", "foo.bar", "-t", "a.com,b.com"}))
	assert.Equal(t, StringSliceFlag{"foo.bar", "a.com", "b.com"}, vals)
}

func TestResolveDedupesAndSkipsComments(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "scope.txt")
	require.NoError(t, os.WriteFile(list, []byte("# in-scope\nfoo.bar\n\napi.foo.bar\nfoo.bar\n"), 0o644))

	ts := &TargetSource{Assets: []string{"foo.bar"}, ListFile: list}
	assets, err := ts.Resolve()
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, "foo.bar", assets[0].Value)
	assert.Equal(t, "api.foo.bar", assets[1].Value)
}

func TestClassifyAsset(t *testing.T) {
	cases := map[string]model.AssetType{
		"foo.bar":             model.AssetDomain,
		"api.foo.bar":         model.AssetHostname,
		"10.0.0.1":            model.AssetIP,
		"10.0.0.0/24":         model.AssetCIDR,
		"https://foo.bar/app": model.AssetURL,
	}
	for value, want := range cases {
		assert.Equal(t, want, ClassifyAsset(value), value)
	}
}
