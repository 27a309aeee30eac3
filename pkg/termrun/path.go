package termrun

import (
	"os"
	"path/filepath"
	"strings"
)

// searchDirs returns the well-known install directories that get prepended
// to the inherited PATH. Host apps launched outside a login shell often miss
// the user's shell customizations, so the usual npm/homebrew/version-manager
// locations are added explicitly.
func searchDirs() []string {
	var dirs []string
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		dirs = append(dirs,
			filepath.Join(home, ".local", "bin"),
			filepath.Join(home, "bin"),
			filepath.Join(home, ".npm-global", "bin"),
			filepath.Join(home, ".volta", "bin"),
			filepath.Join(home, ".bun", "bin"),
		)
		// nvm keeps one bin directory per installed node version
		if matches, err := filepath.Glob(filepath.Join(home, ".nvm", "versions", "node", "*", "bin")); err == nil {
			dirs = append(dirs, matches...)
		}
	}
	dirs = append(dirs, "/opt/homebrew/bin", "/usr/local/bin")
	return dirs
}

// SearchPath returns the effective PATH used to resolve and launch probe
// subprocesses: well-known install directories first, then the inherited
// PATH. This is the only environment mutation the launcher performs.
func SearchPath() string {
	parts := searchDirs()
	if env := os.Getenv("PATH"); env != "" {
		parts = append(parts, env)
	}
	return strings.Join(parts, string(os.PathListSeparator))
}

// Which resolves binary to an absolute path on the effective search path.
// Returns the empty string when the binary cannot be found. Pure lookup:
// no process is spawned.
func Which(binary string) string {
	if binary == "" {
		return ""
	}
	if strings.ContainsRune(binary, os.PathSeparator) {
		if isExecutable(binary) {
			if abs, err := filepath.Abs(binary); err == nil {
				return abs
			}
		}
		return ""
	}
	for _, dir := range filepath.SplitList(SearchPath()) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, binary)
		if isExecutable(candidate) {
			return candidate
		}
	}
	return ""
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}

// Environ returns the current environment with PATH replaced by the
// augmented search path, for use when launching probe subprocesses.
func Environ() []string {
	env := os.Environ()
	for i, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			env[i] = "PATH=" + SearchPath()
			return env
		}
	}
	return append(env, "PATH="+SearchPath())
}
