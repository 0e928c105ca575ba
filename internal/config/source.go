package config

import (
	"os"
	"path/filepath"
)

// System-wide definition files, used when no per-user directory exists.
const (
	SystemClusterFile = "/etc/clusters"
	SystemTagFile     = "/etc/tags"
)

// Source records where cluster and tag definitions come from. It is computed
// once at startup and never changes afterwards.
type Source struct {
	// Dir is the located config directory, empty when the system-wide
	// fallback is in use or nothing was found.
	Dir string

	ClusterFiles []string
	TagFiles     []string

	// Searched lists every location that was considered, for diagnostics.
	Searched []string
}

// Found reports whether a config directory or any definition file exists.
func (s Source) Found() bool {
	return s.Dir != "" || len(s.ClusterFiles) > 0 || len(s.TagFiles) > 0
}

// Env abstracts the process environment for Locate.
type Env struct {
	Getenv  func(string) string
	HomeDir func() (string, error)
	Stat    func(string) (os.FileInfo, error)
}

// OSEnv returns an Env backed by the real process environment.
func OSEnv() Env {
	return Env{Getenv: os.Getenv, HomeDir: os.UserHomeDir, Stat: os.Stat}
}

// Locate walks the directory chain: $TCSSH_CONFIG_DIR, ~/.tcssh, ~/.clusterssh,
// then the system-wide /etc/clusters and /etc/tags. The first existing
// directory wins; inside it only the files that exist are recorded. Extra
// files are appended after the located ones when they exist.
func Locate(env Env, extraClusters, extraTags []string) Source {
	var src Source

	var candidates []string
	if v := env.Getenv("TCSSH_CONFIG_DIR"); v != "" {
		candidates = append(candidates, v)
	}
	if home, err := env.HomeDir(); err == nil && home != "" {
		candidates = append(candidates,
			filepath.Join(home, ".tcssh"),
			filepath.Join(home, ".clusterssh"))
	}

	for _, dir := range candidates {
		src.Searched = append(src.Searched, dir)
		if isDir(env, dir) {
			src.Dir = dir
			break
		}
	}

	if src.Dir != "" {
		src.ClusterFiles = existing(env, src.ClusterFiles, filepath.Join(src.Dir, "clusters"))
		src.TagFiles = existing(env, src.TagFiles, filepath.Join(src.Dir, "tags"))
	} else {
		src.Searched = append(src.Searched, SystemClusterFile, SystemTagFile)
		src.ClusterFiles = existing(env, src.ClusterFiles, SystemClusterFile)
		src.TagFiles = existing(env, src.TagFiles, SystemTagFile)
	}

	src.ClusterFiles = existing(env, src.ClusterFiles, extraClusters...)
	src.TagFiles = existing(env, src.TagFiles, extraTags...)
	return src
}

func isDir(env Env, path string) bool {
	fi, err := env.Stat(path)
	return err == nil && fi.IsDir()
}

func existing(env Env, dst []string, paths ...string) []string {
	for _, p := range paths {
		if fi, err := env.Stat(p); err == nil && !fi.IsDir() {
			dst = append(dst, p)
		}
	}
	return dst
}
