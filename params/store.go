/*
DESCRIPTION
  store.go implements the Parameter Store (spec §4.1): typed groups with
  get/update/subscribe, atomic on-disk persistence, and no silent defaults.
  The subscribe/unsubscribe mechanism follows the teacher's explicit
  observer-table design philosophy (spec §9 "Observer pattern for parameter
  changes -> explicit subscribe/unsubscribe"): a map from group name to a
  list of callbacks, invoked outside the store's lock.

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

// Package params implements the ISI macroscope's single source of
// configuration truth: typed parameter groups, validated updates, and
// change notification.
package params

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/ausocean/utils/logging"
)

// Subscriber is invoked after a group update commits, with the group name
// and the changed partial (not the full snapshot).
type Subscriber func(group string, changed map[string]interface{})

type subEntry struct {
	id uint64
	cb Subscriber
}

// Store is the parameter store described by spec §4.1. A Store must be
// constructed with New; the zero value is not usable.
type Store struct {
	mu          sync.RWMutex
	groups      map[string]map[string]interface{}
	subscribers map[string][]subEntry
	nextSubID   uint64

	path    string // Backing file for atomic persistence, empty if in-memory only.
	log     logging.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// New returns a Store seeded with the given initial groups (as produced by
// the external parameter JSON loader, out of scope per spec §1) and backed
// by path for atomic persistence. If path is empty, Update still validates
// and notifies but does not write to disk.
//
// New does not validate that every group is complete; components discover
// missing keys lazily on Get, per spec's "no component caches defaults"
// invariant — validation happens at the point of use, not at load time, so
// a partially configured store can still serve the groups it does have.
func New(initial map[string]map[string]interface{}, path string, log logging.Logger) (*Store, error) {
	if log == nil {
		return nil, fmt.Errorf("params: logger must not be nil")
	}
	s := &Store{
		groups:      make(map[string]map[string]interface{}),
		subscribers: make(map[string][]subEntry),
		path:        path,
		log:         log,
		done:        make(chan struct{}),
	}
	for _, g := range GroupNames() {
		s.groups[g] = make(map[string]interface{})
	}
	for g, kv := range initial {
		if _, ok := s.groups[g]; !ok {
			return nil, fmt.Errorf("params: unrecognised group %q in initial parameters", g)
		}
		for k, v := range kv {
			s.groups[g][k] = v
		}
	}

	if path != "" {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			log.Warning("params: could not start file watcher", "error", err.Error())
		} else {
			if err := w.Add(filepath.Dir(path)); err != nil {
				log.Warning("params: could not watch parameter file directory", "error", err.Error())
				w.Close()
			} else {
				s.watcher = w
				go s.watchExternalEdits()
			}
		}
	}

	return s, nil
}

// Get returns a coherent snapshot of group. Concurrent writers are
// guaranteed to be observed in commit order: a Get that begins after an
// Update commits sees that update (spec invariant 1).
func (s *Store) Get(group string) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[group]
	if !ok {
		return nil, fmt.Errorf("params: unrecognised group %q", group)
	}
	return cloneMap(g), nil
}

// GetRequired returns a snapshot of group and additionally validates that
// every required key in the group's schema is present and in-bound. This
// is the call components should use immediately before an operation that
// needs a complete group (spec §4.1 "missing required key is a fatal error").
func (s *Store) GetRequired(component, group string) (map[string]interface{}, error) {
	snap, err := s.Get(group)
	if err != nil {
		return nil, err
	}
	if err := validateComplete(component, group, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Update validates partial against group's schema and, on success,
// atomically merges it into the group, persists to disk (if backed by a
// file), and notifies subscribers registered for that group. Subscriber
// callbacks run after the lock is released and after the update is
// observable via Get (spec invariant 2).
func (s *Store) Update(component, group string, partial map[string]interface{}) error {
	if err := validatePartial(component, group, partial); err != nil {
		return err
	}

	s.mu.Lock()
	g, ok := s.groups[group]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("params: unrecognised group %q", group)
	}
	for k, v := range partial {
		if deprecatedKeys[group][k] {
			s.log.Warning("params: write to deprecated/unused key", "group", group, "key", k)
		}
		g[k] = v
	}
	subs := append([]subEntry(nil), s.subscribers[group]...)
	s.mu.Unlock()

	if s.path != "" {
		if err := s.persist(); err != nil {
			s.log.Error("params: failed to persist parameter file", "error", err.Error())
		}
	}

	changed := cloneMap(partial)
	for _, sub := range subs {
		s.notifyOne(sub, group, changed)
	}
	return nil
}

// notifyOne invokes a single subscriber, recovering from and logging any
// panic so one bad subscriber cannot block or crash the others (spec §4.1
// "exceptions are logged and do not block other subscribers").
func (s *Store) notifyOne(sub subEntry, group string, changed map[string]interface{}) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("params: subscriber panicked", "group", group, "panic", fmt.Sprint(r))
		}
	}()
	sub.cb(group, changed)
}

// SubID identifies a registered subscriber for later Unsubscribe.
type SubID uint64

// Subscribe registers cb to be called after every committed Update to
// group. It returns an id usable with Unsubscribe.
func (s *Store) Subscribe(group string, cb Subscriber) (SubID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[group]; !ok {
		return 0, fmt.Errorf("params: unrecognised group %q", group)
	}
	s.nextSubID++
	id := s.nextSubID
	s.subscribers[group] = append(s.subscribers[group], subEntry{id: id, cb: cb})
	return SubID(id), nil
}

// Unsubscribe removes a previously registered subscriber. It is a no-op if
// id is not found (idempotent, so cleanup paths can call it unconditionally).
func (s *Store) Unsubscribe(group string, id SubID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.subscribers[group]
	for i, sub := range subs {
		if sub.id == uint64(id) {
			s.subscribers[group] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Close stops the file watcher goroutine, if any.
func (s *Store) Close() error {
	close(s.done)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// persist writes the full store to s.path using temp-file-then-rename so a
// crash mid-write never leaves a corrupt parameter file (spec §4.1).
func (s *Store) persist() error {
	s.mu.RLock()
	buf, err := json.MarshalIndent(s.groups, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("params: marshal failed: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".params-*.tmp")
	if err != nil {
		return fmt.Errorf("params: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("params: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("params: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("params: rename temp file: %w", err)
	}
	return nil
}

// watchExternalEdits reloads the parameter file and republishes any group
// whose on-disk content diverges from the in-memory store, when the
// backing file is modified by a process other than this Store (e.g. an
// operator editing the file directly, or the external parameter loader
// re-writing it at a later startup). This is additive to, and distinct
// from, the out-of-scope initial-load parameter JSON loader (spec §1).
func (s *Store) watchExternalEdits() {
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			s.reloadFromDisk()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warning("params: file watcher error", "error", err.Error())
		}
	}
}

func (s *Store) reloadFromDisk() {
	buf, err := os.ReadFile(s.path)
	if err != nil {
		s.log.Warning("params: could not read parameter file after external edit", "error", err.Error())
		return
	}
	var onDisk map[string]map[string]interface{}
	if err := json.Unmarshal(buf, &onDisk); err != nil {
		s.log.Warning("params: parameter file unreadable after external edit", "error", err.Error())
		return
	}
	for group, kv := range onDisk {
		if _, ok := s.groups[group]; !ok {
			continue
		}
		changed := make(map[string]interface{})
		s.mu.RLock()
		for k, v := range kv {
			if cur, ok := s.groups[group][k]; !ok || !valuesEqual(cur, v) {
				changed[k] = v
			}
		}
		s.mu.RUnlock()
		if len(changed) == 0 {
			continue
		}
		if err := s.Update("params.watcher", group, changed); err != nil {
			s.log.Warning("params: external edit rejected by schema", "group", group, "error", err.Error())
		}
	}
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func valuesEqual(a, b interface{}) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
