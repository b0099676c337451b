//go:build unix

package shm

import (
	"fmt"
	"os"
	"syscall"
)

// Create opens (creating if necessary) the file at path, sizes it to hold
// ringSlots metadata records plus room for frameSlots frames of up to
// frameSize bytes, and memory-maps it MAP_SHARED so external reader
// processes can map the same file read-only (spec §4.2). path would
// typically live on a tmpfs such as /dev/shm for a real macroscope rig.
func Create(path string, ringSlots int, frameSize int64, frameSlots int) (*Channel, error) {
	total := int64(ringSlots)*metaRecordSize + frameSize*int64(frameSlots)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", path, err)
	}
	if err := f.Truncate(total); err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: truncate %s to %d: %w", path, total, err)
	}

	region, err := syscall.Mmap(int(f.Fd()), 0, int(total), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}

	ch, err := newChannel(region, ringSlots, frameSize, func() error {
		err1 := syscall.Munmap(region)
		err2 := f.Close()
		if err1 != nil {
			return err1
		}
		return err2
	})
	if err != nil {
		syscall.Munmap(region)
		f.Close()
		return nil, err
	}
	return ch, nil
}

// OpenReadOnly memory-maps an existing shared-frame channel file for
// reading. This is provided for in-module tools (e.g. a session replay
// helper) and tests; the cross-process GUI subscriber named in spec §1 is
// an external collaborator and does not use this package directly.
func OpenReadOnly(path string, ringSlots int, frameSize int64, frameSlots int) (*Channel, error) {
	total := int64(ringSlots)*metaRecordSize + frameSize*int64(frameSlots)

	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", path, err)
	}

	region, err := syscall.Mmap(int(f.Fd()), 0, int(total), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}

	return newChannelMode(region, ringSlots, frameSize, func() error {
		err1 := syscall.Munmap(region)
		err2 := f.Close()
		if err1 != nil {
			return err1
		}
		return err2
	}, true)
}
