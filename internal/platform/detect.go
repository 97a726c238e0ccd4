package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appDir = "voxtype"

type Runtime struct {
	OS   string
	Arch string
}

func CurrentRuntime() Runtime {
	return Runtime{
		OS:   runtime.GOOS,
		Arch: NormalizeArch(runtime.GOARCH),
	}
}

func NormalizeArch(arch string) string {
	switch arch {
	case "x86_64":
		return "amd64"
	case "aarch64":
		return "arm64"
	default:
		return arch
	}
}

// Dirs is the per-user directory layout. Linux follows XDG; macOS keeps data
// and config together under Application Support.
type Dirs struct {
	Data   string
	Config string
}

// DirsFor computes the layout for goos without touching the environment of
// the running process.
func DirsFor(goos, homeDir string, getenv func(string) string) (Dirs, error) {
	if homeDir == "" {
		return Dirs{}, errors.New("home directory is empty")
	}

	switch goos {
	case "linux":
		return Dirs{
			Data:   xdgDir(getenv("XDG_DATA_HOME"), filepath.Join(homeDir, ".local", "share")),
			Config: xdgDir(getenv("XDG_CONFIG_HOME"), filepath.Join(homeDir, ".config")),
		}, nil
	case "darwin":
		support := filepath.Join(homeDir, "Library", "Application Support", appDir)
		return Dirs{Data: support, Config: support}, nil
	default:
		return Dirs{}, fmt.Errorf("unsupported OS: %s", goos)
	}
}

func xdgDir(base, fallback string) string {
	if base == "" {
		base = fallback
	}
	return filepath.Join(base, appDir)
}

func (d Dirs) Models() string {
	return filepath.Join(d.Data, "models")
}

func (d Dirs) Recordings() string {
	return filepath.Join(d.Data, "recordings")
}

func (d Dirs) History() string {
	return filepath.Join(d.Data, "history.db")
}

// UserDirs is the layout for the current user.
func UserDirs() (Dirs, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Dirs{}, fmt.Errorf("resolve user home: %w", err)
	}
	return DirsFor(runtime.GOOS, homeDir, os.Getenv)
}

func ResolveConfigDir() (string, error) {
	return resolve("", func(d Dirs) string { return d.Config })
}

func ResolveHistoryPath(override string) (string, error) {
	return resolve(override, Dirs.History)
}

func ResolveModelDir(override string) (string, error) {
	return resolve(override, Dirs.Models)
}

func ResolveRecordingDir() (string, error) {
	return resolve("", Dirs.Recordings)
}

// resolve prefers a configured override over the user layout.
func resolve(override string, pick func(Dirs) string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}
	dirs, err := UserDirs()
	if err != nil {
		return "", err
	}
	return pick(dirs), nil
}
