// Package store persists the desired set of components and bindings.
//
// A Store holds component configs keyed by id and binding configs keyed by
// their 4-tuple. Mutations happen in memory and mark the store dirty. A
// SyncManager writes the full item set back through a Backend once the
// store has been quiet for the debounce delay, so bursts of edits cost a
// single write.
//
// The persisted form is a JSON array of tagged items:
//
//	[
//	  {"type": "component", "config": {"id": "lamp", "plugin": "core/variable-bool", "config": {}}},
//	  {"type": "binding", "config": {"sourceId": "a", "sourceState": "value", "targetId": "lamp", "targetAction": "set"}}
//	]
//
// Backends:
//   - MemoryBackend: keeps items in process memory
//   - FileBackend: a single JSON file, replaced atomically
//   - MountedBackend: a FileBackend on a read-only filesystem, remounted
//     read-write around every save
//   - SQLiteBackend: the store_items table of the runtime database
//
// Usage:
//
//	backend, err := store.NewBackend(cfg, store.BackendDeps{Runner: process.NewRunner()})
//	st := store.New(backend)
//	if err := st.Load(ctx); err != nil { ... }
//	syncer := store.NewSyncManager(st, cfg.DebounceDelay(), store.WithLogger(log))
//	defer syncer.Close(ctx)
package store
