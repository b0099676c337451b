/*
DESCRIPTION
  channel.go implements the Shared-Frame Channel (spec §4.2): a fixed-size
  memory-mapped region partitioned into a metadata ring and a data region,
  written by the in-process producers that share it and read by external,
  opaque subscribers.

  Memory mapping uses the stdlib syscall package directly, following the
  approach in google-periph's host/pmem/view.go (periph.io/x/periph is a
  zero-dependency repo in the retrieved pack that memory-maps physical
  device registers the same way this channel memory-maps a frame buffer).
  golang.org/x/sys/unix would offer no idiomatic advantage over
  syscall.Mmap/Munmap here, so no additional dependency is introduced for
  this concern (see DESIGN.md).

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

// Package shm implements the zero-copy shared-frame channel used to
// publish camera, stimulus and analysis frames for live preview.
package shm

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
)

// FrameMeta is the metadata record published alongside every frame (spec
// §4.2). It is small and fixed-size so it fits in a ring slot.
type FrameMeta struct {
	FrameID     uint64
	TimestampUS int64
	FrameIndex  int32
	Direction   string
	AngleDeg    float32
	WidthPx     int32
	HeightPx    int32
	OffsetBytes int64
	SizeBytes   int64
}

const metaRecordSize = 8 + 8 + 4 + 8 /*direction, fixed 8 bytes*/ + 4 + 4 + 4 + 8 + 8

// MetaSink receives a FrameMeta immediately after its payload has been
// written to the mapped region. In this core it is wired to bus.Sync.Publish
// wrapped to produce an EventSharedFrameMetadata event; it is a plain
// function here so the shm package does not need to import bus.
type MetaSink func(FrameMeta)

// Channel is a shared-frame channel over one memory-mapped region. The
// Lifecycle Orchestrator hands one Channel to the camera, the stimulus
// engine and the analysis pipeline, so all three publish into the same
// ring and data region; Publish takes mu, so their writes are serialized
// rather than lock-free.
type Channel struct {
	mu sync.Mutex // Serializes Publish calls from every producer; Read takes no lock.

	region []byte // The full mapped region: ring || data.
	closer func() error

	ringSlots    int
	ringOffset   int64
	frameSlots   int
	frameSize    int64
	dataOffset   int64

	seq      uint64
	sink     MetaSink
	readOnly bool
}

// frameSlotsFor picks a ring depth so that frameSize*frameSlots fits in
// dataSize, with a minimum of 2 slots (so readers never observe a producer
// overwriting the slot they are mid-read of more often than necessary). It
// returns 0 when fewer than 2 frames fit.
func frameSlotsFor(dataSize, frameSize int64) int {
	if frameSize <= 0 {
		return 0
	}
	n := int(dataSize / frameSize)
	if n < 2 {
		return 0
	}
	return n
}

// newChannel builds a Channel over an already-mapped region, used by both
// the real mmap-backed constructor (create_unix.go) and tests that want an
// in-process region without touching the filesystem.
func newChannel(region []byte, ringSlots int, frameSize int64, closer func() error) (*Channel, error) {
	return newChannelMode(region, ringSlots, frameSize, closer, false)
}

func newChannelMode(region []byte, ringSlots int, frameSize int64, closer func() error, readOnly bool) (*Channel, error) {
	ringBytes := int64(ringSlots) * metaRecordSize
	if ringBytes >= int64(len(region)) {
		return nil, fmt.Errorf("shm: region too small for %d ring slots", ringSlots)
	}
	dataSize := int64(len(region)) - ringBytes
	frameSlots := frameSlotsFor(dataSize, frameSize)
	if frameSlots == 0 {
		return nil, fmt.Errorf("shm: frame size %d does not fit in data region of %d bytes", frameSize, dataSize)
	}
	return &Channel{
		region:     region,
		closer:     closer,
		ringSlots:  ringSlots,
		ringOffset: 0,
		frameSlots: frameSlots,
		frameSize:  frameSize,
		dataOffset: ringBytes,
		readOnly:   readOnly,
	}, nil
}

// SetSink installs the callback invoked after each Publish. It is not safe
// to call concurrently with Publish.
func (c *Channel) SetSink(sink MetaSink) { c.sink = sink }

// Publish writes payload into the next data slot and a metadata record into
// the next ring slot, then invokes the sink. It returns the metadata
// record actually written (with FrameID and offsets filled in) so callers
// (e.g. the Recorder) can correlate what was published for preview with
// what is durably recorded.
func (c *Channel) Publish(payload []byte, meta FrameMeta) (FrameMeta, error) {
	if c.readOnly {
		return FrameMeta{}, fmt.Errorf("shm: channel is read-only")
	}
	if int64(len(payload)) > c.frameSize {
		return FrameMeta{}, fmt.Errorf("shm: payload %d bytes exceeds frame slot size %d", len(payload), c.frameSize)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	slot := int64(c.seq) % int64(c.frameSlots)
	offset := c.dataOffset + slot*c.frameSize
	copy(c.region[offset:offset+c.frameSize], payload)

	meta.OffsetBytes = offset
	meta.SizeBytes = int64(len(payload))
	meta.FrameID = c.seq
	c.seq++

	ringSlot := int64(meta.FrameID) % int64(c.ringSlots)
	writeMetaRecord(c.region[ringSlot*metaRecordSize:], meta)

	if c.sink != nil {
		c.sink(meta)
	}
	return meta, nil
}

// Read copies the payload described by meta out of the mapped region. It
// is safe for any number of concurrent readers; a reader is responsible for
// detecting staleness via FrameID continuity (spec §4.2: "a stale read is
// acceptable for live preview").
func (c *Channel) Read(meta FrameMeta) ([]byte, error) {
	if meta.OffsetBytes < 0 || meta.OffsetBytes+meta.SizeBytes > int64(len(c.region)) {
		return nil, fmt.Errorf("shm: metadata offset/size out of range")
	}
	out := make([]byte, meta.SizeBytes)
	copy(out, c.region[meta.OffsetBytes:meta.OffsetBytes+meta.SizeBytes])
	return out, nil
}

// Close unmaps the region.
func (c *Channel) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

func writeMetaRecord(b []byte, m FrameMeta) {
	binary.LittleEndian.PutUint64(b[0:8], m.FrameID)
	binary.LittleEndian.PutUint64(b[8:16], uint64(m.TimestampUS))
	binary.LittleEndian.PutUint32(b[16:20], uint32(m.FrameIndex))
	var dir [8]byte
	copy(dir[:], m.Direction)
	copy(b[20:28], dir[:])
	binary.LittleEndian.PutUint32(b[28:32], math.Float32bits(m.AngleDeg))
	binary.LittleEndian.PutUint32(b[32:36], uint32(m.WidthPx))
	binary.LittleEndian.PutUint32(b[36:40], uint32(m.HeightPx))
	binary.LittleEndian.PutUint64(b[40:48], uint64(m.OffsetBytes))
	binary.LittleEndian.PutUint64(b[48:56], uint64(m.SizeBytes))
}

func readMetaRecord(b []byte) FrameMeta {
	var m FrameMeta
	m.FrameID = binary.LittleEndian.Uint64(b[0:8])
	m.TimestampUS = int64(binary.LittleEndian.Uint64(b[8:16]))
	m.FrameIndex = int32(binary.LittleEndian.Uint32(b[16:20]))
	dir := b[20:28]
	n := 0
	for n < len(dir) && dir[n] != 0 {
		n++
	}
	m.Direction = string(dir[:n])
	m.AngleDeg = math.Float32frombits(binary.LittleEndian.Uint32(b[28:32]))
	m.WidthPx = int32(binary.LittleEndian.Uint32(b[32:36]))
	m.HeightPx = int32(binary.LittleEndian.Uint32(b[36:40]))
	m.OffsetBytes = int64(binary.LittleEndian.Uint64(b[40:48]))
	m.SizeBytes = int64(binary.LittleEndian.Uint64(b[48:56]))
	return m
}

// LatestMeta reads the ring slot most recently written, for readers that
// poll rather than subscribe via the sync channel.
func (c *Channel) LatestMeta() (FrameMeta, bool) {
	c.mu.Lock()
	seq := c.seq
	c.mu.Unlock()
	if seq == 0 {
		return FrameMeta{}, false
	}
	last := (seq - 1) % uint64(c.ringSlots)
	return readMetaRecord(c.region[last*metaRecordSize:]), true
}
