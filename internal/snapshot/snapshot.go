// Package snapshot saves and restores the mutable state of a region: its
// instances and their variables. Terrain and graphs come from content and are
// not part of a snapshot.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"tilesuite/server/internal/behavior"
	"tilesuite/server/internal/world"
)

// Version is the current on-disk format version.
const Version = 1

// ErrRegionMismatch is returned when a snapshot is applied to another region.
var ErrRegionMismatch = errors.New("snapshot: region mismatch")

type Header struct {
	Version int    `json:"version"`
	Region  string `json:"region"`
	Tick    uint64 `json:"tick"`
}

// InstanceV1 is one instance. Variables are stored as parallel slices to keep
// their insertion order.
type InstanceV1 struct {
	Name           string
	Behavior       int64
	State          uint8
	Position       *world.Position
	OldPosition    *world.Position
	Keys           []string
	Values         []float64
	NodeVariables  map[string]float64
	NextDecisionAt uint64
}

type SnapshotV1 struct {
	Header    Header
	Seed      string
	Instances []InstanceV1
}

// Capture copies the region state at tick. The caller must hold the region
// exclusively.
func Capture(tick uint64, region *world.Region) SnapshotV1 {
	snap := SnapshotV1{
		Header: Header{Version: Version, Region: region.ID, Tick: tick},
		Seed:   region.Seed,
	}
	for _, inst := range region.Instances() {
		row := InstanceV1{
			Name:           inst.Name,
			Behavior:       inst.Behavior,
			State:          uint8(inst.State),
			NodeVariables:  region.Variables.Variables(inst.Index),
			NextDecisionAt: inst.NextDecisionAt,
		}
		if inst.Position != nil {
			p := *inst.Position
			row.Position = &p
		}
		if inst.OldPosition != nil {
			p := *inst.OldPosition
			row.OldPosition = &p
		}
		if inst.Values != nil {
			for _, key := range inst.Values.Keys() {
				v, _ := inst.Values.Get(key)
				row.Keys = append(row.Keys, key)
				row.Values = append(row.Values, v)
			}
		}
		snap.Instances = append(snap.Instances, row)
	}
	return snap
}

// Apply replaces the region's instances with the snapshot's.
func Apply(snap SnapshotV1, region *world.Region) error {
	if snap.Header.Region != region.ID {
		return fmt.Errorf("%w: snapshot %q, region %q", ErrRegionMismatch, snap.Header.Region, region.ID)
	}
	instances := make([]*world.Instance, len(snap.Instances))
	for i, row := range snap.Instances {
		if len(row.Keys) != len(row.Values) {
			return fmt.Errorf("snapshot: instance %d: %d keys for %d values", i, len(row.Keys), len(row.Values))
		}
		values := behavior.NewScope()
		for k, key := range row.Keys {
			values.Set(key, row.Values[k])
		}
		instances[i] = &world.Instance{
			Index:          i,
			Name:           row.Name,
			Behavior:       row.Behavior,
			State:          world.InstanceState(row.State),
			Position:       row.Position,
			OldPosition:    row.OldPosition,
			Values:         values,
			NextDecisionAt: row.NextDecisionAt,
		}
	}
	region.Restore(instances)
	for i, row := range snap.Instances {
		if row.NodeVariables == nil {
			region.Variables.Forget(i)
			continue
		}
		region.Variables.Restore(i, row.NodeVariables)
	}
	if snap.Seed != "" {
		region.Seed = snap.Seed
	}
	return nil
}

// Write stores snap at path: a JSON header line followed by the gob payload,
// zstd-compressed. The file is replaced atomically.
func Write(path string, snap SnapshotV1) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("snapshot: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("snapshot: create temp: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	enc, err := zstd.NewWriter(tmp, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("snapshot: zstd writer: %w", err)
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		return fmt.Errorf("snapshot: header: %w", err)
	}
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		return fmt.Errorf("snapshot: write header: %w", err)
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("snapshot: gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("snapshot: flush: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("snapshot: zstd close: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshot: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("snapshot: rename: %w", err)
	}
	return nil
}

// Read loads a snapshot written by Write.
func Read(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, fmt.Errorf("snapshot: open: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, fmt.Errorf("snapshot: zstd reader: %w", err)
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("snapshot: read header: %w", err)
	}
	var header Header
	if err := json.Unmarshal(line, &header); err != nil {
		return snap, fmt.Errorf("snapshot: decode header: %w", err)
	}
	if header.Version != Version {
		return snap, fmt.Errorf("snapshot: unsupported version %d", header.Version)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("snapshot: gob decode: %w", err)
	}
	return snap, nil
}
