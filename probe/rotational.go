package probe

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// rotational reports whether the block device backing root spins (true) or
// is solid-state (false). ok is false when the kernel doesn't expose a
// rotational attribute for this device (e.g. it's virtual, or we're not on
// Linux's /sys/dev/block layout).
func rotational(root string) (spins bool, ok bool) {
	var st unix.Stat_t
	if err := unix.Stat(root, &st); err != nil {
		return false, false
	}

	major := unix.Major(uint64(st.Dev))
	minor := unix.Minor(uint64(st.Dev))

	link := filepath.Join("/sys/dev/block", devID(major, minor))
	dev, err := os.Readlink(link)
	if err != nil {
		return false, false
	}

	// A partition's sysfs entry nests under its parent disk
	// (.../sda/sda1); the rotational attribute lives on the parent.
	parts := strings.Split(strings.Trim(dev, "/"), "/")
	diskDir := link
	if len(parts) >= 2 {
		diskDir = filepath.Join("/sys/dev/block", strings.Join(parts[:len(parts)-1], "/"))
	}

	b, err := os.ReadFile(filepath.Join(diskDir, "queue", "rotational"))
	if err != nil {
		return false, false
	}

	v, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return false, false
	}
	return v == 1, true
}

func devID(major, minor uint32) string {
	return strconv.FormatUint(uint64(major), 10) + ":" + strconv.FormatUint(uint64(minor), 10)
}
