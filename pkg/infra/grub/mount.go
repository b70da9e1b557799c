package grub

import (
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sys/unix"
)

// Mounter toggles the /boot mount between read-only and read-write so
// the environment block can be rewritten on ostree/bootc systems where
// /boot stays read-only.
type Mounter struct {
	bootPath      string
	mountInfoPath string
}

// NewMounter creates a Mounter. mountInfoPath is usually /proc/mounts.
func NewMounter(bootPath, mountInfoPath string) *Mounter {
	return &Mounter{
		bootPath:      bootPath,
		mountInfoPath: mountInfoPath,
	}
}

// IsBootRW reports whether the boot mount point is currently writable
func (m *Mounter) IsBootRW() (bool, error) {
	data, err := os.ReadFile(m.mountInfoPath)
	if err != nil {
		return false, goerr.Wrap(err, "failed to read mount info", goerr.V("path", m.mountInfoPath))
	}

	for _, line := range strings.Split(string(data), "\n") {
		parts := strings.Fields(line)
		if len(parts) < 4 || parts[1] != m.bootPath {
			continue
		}
		options := strings.Split(parts[3], ",")
		for _, opt := range options {
			if opt == "rw" {
				return true, nil
			}
		}
		return false, nil
	}

	return false, goerr.New("boot mount point not found in mount info",
		goerr.V("boot", m.bootPath), goerr.V("path", m.mountInfoPath))
}

// RemountRW remounts the boot mount point read-write if needed. It
// returns a restore function that remounts read-only again, a no-op
// when the mount was already writable.
func (m *Mounter) RemountRW() (func() error, error) {
	rw, err := m.IsBootRW()
	if err != nil {
		return nil, err
	}
	if rw {
		return func() error { return nil }, nil
	}

	if err := unix.Mount("", m.bootPath, "", unix.MS_REMOUNT|unix.MS_BIND, ""); err != nil {
		return nil, goerr.Wrap(err, "failed to remount boot read-write", goerr.V("boot", m.bootPath))
	}

	return m.remountRO, nil
}

func (m *Mounter) remountRO() error {
	if err := unix.Mount("", m.bootPath, "", unix.MS_REMOUNT|unix.MS_RDONLY, ""); err != nil {
		return goerr.Wrap(err, "failed to remount boot read-only", goerr.V("boot", m.bootPath))
	}
	return nil
}
