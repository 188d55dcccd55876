package pathutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeInclude(t *testing.T) {
	assert.Equal(t, filepath.FromSlash("sub/deep.fxh"), NormalizeInclude(`sub\deep.fxh`))
	assert.Equal(t, filepath.FromSlash("a/b.h"), NormalizeInclude("a/b.h"))
	assert.Equal(t, "", NormalizeInclude(""))
}

func TestToRelative(t *testing.T) {
	root := filepath.FromSlash("/home/user/project")

	cases := []struct {
		name string
		path string
		want string
	}{
		{"inside root", filepath.FromSlash("/home/user/project/fx/main.fx"), filepath.FromSlash("fx/main.fx")},
		{"outside root stays absolute", filepath.FromSlash("/other/common.fxh"), filepath.FromSlash("/other/common.fxh")},
		{"already relative", filepath.FromSlash("fx/main.fx"), filepath.FromSlash("fx/main.fx")},
		{"empty path", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ToRelative(tc.path, root))
		})
	}
}

func TestToRelativeEmptyRoot(t *testing.T) {
	path := filepath.FromSlash("/a/b/c")
	assert.Equal(t, path, ToRelative(path, ""))
}
