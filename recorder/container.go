/*
DESCRIPTION
  container.go implements the binary container format for per-direction
  camera and stimulus recordings (spec §4.8 "Disk layout per direction"):
  a small fixed header, the bulk tensor/vector data written with
  encoding/binary, and a gob-encoded attribute trailer. This mirrors the
  teacher's container/mts and container/flv packages' approach of a
  length-delimited binary stream, generalized from an MPEG-TS/FLV framing to
  this system's simpler frame+timestamp containers.

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

// Package recorder persists camera frames and stimulus events to disk
// during acquisition, and reads them back for analysis (spec §4.8).
package recorder

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

var cameraMagic = [4]byte{'I', 'S', 'I', 'C'}
var stimulusMagic = [4]byte{'I', 'S', 'I', 'S'}

const containerVersion = 1

// MonitorAttrs holds the monitor parameters both container kinds require so
// the analysis pipeline can invert the spherical transform without
// consulting the live Parameter Store (spec §4.8 invariant).
type MonitorAttrs struct {
	MonitorFPS             float64
	MonitorWidthPx         int
	MonitorHeightPx        int
	MonitorWidthCM         float64
	MonitorHeightCM        float64
	MonitorDistanceCM      float64
	MonitorLateralAngleDeg float64
	MonitorTiltAngleDeg    float64
	CameraFPS              float64 // Zero (unused) on stimulus containers.
	Direction              string
}

// CameraContainer is the decoded form of a {direction}_camera.bin file.
type CameraContainer struct {
	WidthPx, HeightPx int
	Frames            [][]byte // Each len(WidthPx*HeightPx), 8-bit grayscale.
	TimestampsUS      []int64
	Attrs             MonitorAttrs
}

// StimulusContainer is the decoded form of a {direction}_stimulus.bin file.
type StimulusContainer struct {
	TimestampsUS []int64
	FrameIndices []int32
	AnglesDeg    []float32
	Attrs        MonitorAttrs
}

// WriteCameraContainer atomically writes c to path via a temp-file-then-
// rename, following the Parameter Store's persistence pattern so a crash
// mid-write never leaves a corrupt file at the final path.
func WriteCameraContainer(path string, c CameraContainer) error {
	var buf bytes.Buffer
	buf.Write(cameraMagic[:])
	writeUint32(&buf, containerVersion)
	writeUint32(&buf, uint32(c.WidthPx))
	writeUint32(&buf, uint32(c.HeightPx))
	writeUint32(&buf, uint32(len(c.Frames)))

	frameSize := c.WidthPx * c.HeightPx
	for i, f := range c.Frames {
		if len(f) != frameSize {
			return fmt.Errorf("recorder: frame %d has %d bytes, want %d", i, len(f), frameSize)
		}
		buf.Write(f)
	}
	for _, ts := range c.TimestampsUS {
		writeInt64(&buf, ts)
	}
	if err := gob.NewEncoder(&buf).Encode(c.Attrs); err != nil {
		return fmt.Errorf("recorder: encode attrs: %w", err)
	}
	return atomicWrite(path, buf.Bytes())
}

// ReadCameraContainer reads and decodes a {direction}_camera.bin file.
func ReadCameraContainer(path string) (CameraContainer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CameraContainer{}, fmt.Errorf("recorder: read %s: %w", path, err)
	}
	r := bytes.NewReader(data)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil || magic != cameraMagic {
		return CameraContainer{}, fmt.Errorf("recorder: %s is not a camera container", path)
	}
	if _, err := readUint32(r); err != nil { // version, unused for now.
		return CameraContainer{}, err
	}
	widthPx, err := readUint32(r)
	if err != nil {
		return CameraContainer{}, err
	}
	heightPx, err := readUint32(r)
	if err != nil {
		return CameraContainer{}, err
	}
	frameCount, err := readUint32(r)
	if err != nil {
		return CameraContainer{}, err
	}

	frameSize := int(widthPx) * int(heightPx)
	frames := make([][]byte, frameCount)
	for i := range frames {
		frame := make([]byte, frameSize)
		if _, err := io.ReadFull(r, frame); err != nil {
			return CameraContainer{}, fmt.Errorf("recorder: read frame %d: %w", i, err)
		}
		frames[i] = frame
	}

	timestamps := make([]int64, frameCount)
	for i := range timestamps {
		ts, err := readInt64(r)
		if err != nil {
			return CameraContainer{}, fmt.Errorf("recorder: read timestamp %d: %w", i, err)
		}
		timestamps[i] = ts
	}

	var attrs MonitorAttrs
	if err := gob.NewDecoder(r).Decode(&attrs); err != nil {
		return CameraContainer{}, fmt.Errorf("recorder: decode attrs: %w", err)
	}

	return CameraContainer{
		WidthPx: int(widthPx), HeightPx: int(heightPx),
		Frames: frames, TimestampsUS: timestamps, Attrs: attrs,
	}, nil
}

// WriteStimulusContainer atomically writes c to path (spec §4.8: three
// parallel datasets plus monitor attributes).
func WriteStimulusContainer(path string, c StimulusContainer) error {
	n := len(c.TimestampsUS)
	if len(c.FrameIndices) != n || len(c.AnglesDeg) != n {
		return fmt.Errorf("recorder: stimulus container dataset length mismatch: timestamps=%d frame_indices=%d angles=%d", n, len(c.FrameIndices), len(c.AnglesDeg))
	}

	var buf bytes.Buffer
	buf.Write(stimulusMagic[:])
	writeUint32(&buf, containerVersion)
	writeUint32(&buf, uint32(n))
	for _, ts := range c.TimestampsUS {
		writeInt64(&buf, ts)
	}
	for _, fi := range c.FrameIndices {
		writeUint32(&buf, uint32(fi))
	}
	for _, a := range c.AnglesDeg {
		writeUint32(&buf, math.Float32bits(a))
	}
	if err := gob.NewEncoder(&buf).Encode(c.Attrs); err != nil {
		return fmt.Errorf("recorder: encode attrs: %w", err)
	}
	return atomicWrite(path, buf.Bytes())
}

// ReadStimulusContainer reads and decodes a {direction}_stimulus.bin file.
func ReadStimulusContainer(path string) (StimulusContainer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return StimulusContainer{}, fmt.Errorf("recorder: read %s: %w", path, err)
	}
	r := bytes.NewReader(data)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil || magic != stimulusMagic {
		return StimulusContainer{}, fmt.Errorf("recorder: %s is not a stimulus container", path)
	}
	if _, err := readUint32(r); err != nil {
		return StimulusContainer{}, err
	}
	n, err := readUint32(r)
	if err != nil {
		return StimulusContainer{}, err
	}

	timestamps := make([]int64, n)
	for i := range timestamps {
		ts, err := readInt64(r)
		if err != nil {
			return StimulusContainer{}, err
		}
		timestamps[i] = ts
	}
	frameIndices := make([]int32, n)
	for i := range frameIndices {
		v, err := readUint32(r)
		if err != nil {
			return StimulusContainer{}, err
		}
		frameIndices[i] = int32(v)
	}
	angles := make([]float32, n)
	for i := range angles {
		v, err := readUint32(r)
		if err != nil {
			return StimulusContainer{}, err
		}
		angles[i] = math.Float32frombits(v)
	}

	var attrs MonitorAttrs
	if err := gob.NewDecoder(r).Decode(&attrs); err != nil {
		return StimulusContainer{}, fmt.Errorf("recorder: decode attrs: %w", err)
	}

	return StimulusContainer{
		TimestampsUS: timestamps, FrameIndices: frameIndices, AnglesDeg: angles, Attrs: attrs,
	}, nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readInt64(r io.Reader) (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// atomicWrite writes data to a temp file in the same directory as path,
// then renames it into place, so a crash mid-write never corrupts an
// existing container (spec §4.8: "on crash the container becomes
// unreadable and the direction must be re-acquired" describes a crash
// during this write, not a torn overwrite of a previously good file).
func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "isicore-container-*")
	if err != nil {
		return fmt.Errorf("recorder: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("recorder: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("recorder: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("recorder: rename into place: %w", err)
	}
	return nil
}
