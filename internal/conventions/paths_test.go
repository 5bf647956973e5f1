package conventions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agenciai/agx/internal/conventions"
)

func TestPaths(t *testing.T) {
	tests := map[string]struct {
		path    func() string
		expPath string
	}{
		"Config path should be on the data dir.": {
			path:    func() string { return conventions.ConfigPath("/home/test/.agx") },
			expPath: "/home/test/.agx/config.yaml",
		},

		"DB path should be on the data dir.": {
			path:    func() string { return conventions.DBPath("/home/test/.agx") },
			expPath: "/home/test/.agx/agx.db",
		},

		"Download path should be a CSV named as the task on the downloads dir.": {
			path:    func() string { return conventions.DownloadPath("/home/test/.agx", "01JABC") },
			expPath: "/home/test/.agx/downloads/01JABC.csv",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expPath, test.path())
		})
	}
}

func TestDataDir(t *testing.T) {
	t.Setenv("HOME", "/home/test")
	assert.Equal(t, "/home/test/.agx", conventions.DataDir())
}
