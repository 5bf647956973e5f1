package conventions

import (
	"path/filepath"

	"k8s.io/client-go/util/homedir"
)

const (
	// DefaultDataDir is the default agx data directory name (relative to home).
	DefaultDataDir = ".agx"

	// ConfigFile is the filename of the YAML config inside the data directory.
	ConfigFile = "config.yaml"
	// DBFile is the filename of the SQLite task history inside the data directory.
	DBFile = "agx.db"
	// DownloadsDir is the subdirectory where results are downloaded by default.
	DownloadsDir = "downloads"

	// EnvFile is the dotenv file loaded from the working directory.
	EnvFile = ".env"
	// EnvPrefix is the prefix of the environment variables the CLI reads.
	EnvPrefix = "AGX"
)

// DataDir returns the default data directory, empty if the user home can't be
// resolved.
func DataDir() string {
	home := homedir.HomeDir()
	if home == "" {
		return ""
	}
	return filepath.Join(home, DefaultDataDir)
}

// ConfigPath returns the path to the YAML config in a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, ConfigFile)
}

// DBPath returns the path to the task history database in a data directory.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, DBFile)
}

// DownloadPath returns the default path of the results of a task.
func DownloadPath(dataDir, taskID string) string {
	return filepath.Join(dataDir, DownloadsDir, taskID+".csv")
}
