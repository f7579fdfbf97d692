//go:build unix

package shm

import (
	"errors"

	"golang.org/x/sys/unix"
)

func openExclusive(path string) (int, error) {
	return unix.Open(path, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR|unix.O_CLOEXEC, 0o666)
}

func openExisting(path string, writable bool) (int, error) {
	flags := unix.O_RDONLY
	if writable {
		flags = unix.O_RDWR
	}
	return unix.Open(path, flags|unix.O_CLOEXEC, 0)
}

// truncate and mapRegion are variables so tests can fail them and check
// that every partially acquired resource is released.
var truncate = func(fd, size int) error {
	return unix.Ftruncate(fd, int64(size))
}

func objectSize(fd int) (int64, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return 0, err
	}
	return st.Size, nil
}

var mapRegion = func(fd, size int, writable bool) ([]byte, error) {
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}
	return unix.Mmap(fd, 0, size, prot, unix.MAP_SHARED)
}

func unmapRegion(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	return unix.Munmap(mem)
}

func closeFD(fd int) error {
	if fd < 0 {
		return nil
	}
	return unix.Close(fd)
}

func unlink(path string) error {
	return unix.Unlink(path)
}

func isExist(err error) bool {
	return errors.Is(err, unix.EEXIST)
}

func isNotExist(err error) bool {
	return errors.Is(err, unix.ENOENT)
}
