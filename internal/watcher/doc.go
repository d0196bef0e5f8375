// Package watcher reports changes to the policy folder so the corpus and
// index can be rebuilt without a manual `smarthr ingest`.
//
// fsnotify is used when available; polling takes over where it is not
// (network mounts, some container volumes). Events are debounced so an
// editor's save sequence or a bulk copy yields one batch.
//
// Usage:
//
//	w, err := watcher.New(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go func() { _ = w.Start(ctx, rawDir) }()
//
//	for batch := range w.Events() {
//	    // rebuild
//	}
package watcher
