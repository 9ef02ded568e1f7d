//go:build unix

package mmap

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

func mapFile(f *os.File, size int) ([]byte, func() error, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return data, func() error { return unix.Munmap(data) }, nil
}

var advice = map[Access]int{
	AccessNormal:     unix.MADV_NORMAL,
	AccessRandom:     unix.MADV_RANDOM,
	AccessSequential: unix.MADV_SEQUENTIAL,
	AccessWillNeed:   unix.MADV_WILLNEED,
}

func advise(b []byte, a Access) error {
	adv, ok := advice[a]
	if !ok {
		adv = unix.MADV_NORMAL
	}
	// Sub-ranges are rarely page aligned; the hint is best effort.
	if err := unix.Madvise(b, adv); err != nil && !errors.Is(err, unix.EINVAL) {
		return err
	}
	return nil
}
