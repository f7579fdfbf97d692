//go:build !unix

package shm

import "errors"

var errUnsupported = errors.New("shared memory segments are not supported on this platform")

func openExclusive(string) (int, error) { return -1, errUnsupported }
func openExisting(string, bool) (int, error) { return -1, errUnsupported }
var truncate = func(int, int) error { return errUnsupported }
func objectSize(int) (int64, error) { return 0, errUnsupported }
var mapRegion = func(int, int, bool) ([]byte, error) { return nil, errUnsupported }
func unmapRegion([]byte) error { return nil }
func closeFD(int) error { return nil }
func unlink(string) error { return errUnsupported }
func isExist(error) bool { return false }
func isNotExist(error) bool { return false }
