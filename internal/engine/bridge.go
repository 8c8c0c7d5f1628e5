package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/moon/internal/store"
	"github.com/roach88/moon/internal/value"
)

// WatchAll is the Watch key that lists every invokable name.
const WatchAll = "fn"

// Insert upserts a record and returns the collection name.
func (e *Engine) Insert(ctx context.Context, collection, id string, v value.Value) (string, error) {
	err := e.storage.Upsert(ctx, collection, id, v)
	e.recorder.ObserveStore("upsert", err)
	if err != nil {
		return "", fmt.Errorf("insert: %w", err)
	}
	e.logger.Debug("insert", "collection", collection, "id", id)
	return collection, nil
}

// Delete removes a record and returns its id. A missing record is not an
// error.
func (e *Engine) Delete(ctx context.Context, collection, id string) (string, error) {
	err := e.storage.Delete(ctx, collection, id)
	e.recorder.ObserveStore("delete", err)
	if err != nil {
		return "", fmt.Errorf("delete: %w", err)
	}
	e.logger.Debug("delete", "collection", collection, "id", id)
	return id, nil
}

// Remove drops a whole collection and returns its name.
func (e *Engine) Remove(ctx context.Context, collection string) (string, error) {
	err := e.storage.Drop(ctx, collection)
	e.recorder.ObserveStore("drop", err)
	if err != nil {
		return "", fmt.Errorf("remove: %w", err)
	}
	e.logger.Debug("remove", "collection", collection)
	return collection, nil
}

// Watch describes key:
//   - WatchAll: every collection and atom name, each mapped to itself
//   - an atom name: the name itself
//   - anything else: the collection's records as {id: value}
func (e *Engine) Watch(ctx context.Context, key string) (value.Value, error) {
	if key == WatchAll {
		names, err := e.storage.Collections(ctx)
		e.recorder.ObserveStore("collections", err)
		if err != nil {
			return nil, fmt.Errorf("watch: %w", err)
		}
		out := make(value.Object, len(names)+e.registry.Len())
		for _, n := range names {
			out[n] = value.String(n)
		}
		for _, n := range e.registry.Names() {
			out[n] = value.String(n)
		}
		return out, nil
	}

	if _, ok := e.registry.Lookup(key); ok {
		return value.String(key), nil
	}

	records, err := e.storage.All(ctx, key)
	e.recorder.ObserveStore("all", err)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	out := make(value.Object, len(records))
	for _, r := range records {
		out[r.ID] = r.Value
	}
	return out, nil
}

// Resolve looks up id in collection, falling back to the collection's
// default record and then to the empty string.
//
// A collection that does not exist is an UNKNOWN_CALL: the name matched
// no atom and there is nothing to fall back to.
func (e *Engine) Resolve(ctx context.Context, collection, id string) (value.Value, error) {
	v, found, err := e.get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	if found {
		e.logger.Debug("resolve", "collection", collection, "id", id, "hit", "record")
		return v, nil
	}

	if id != store.DefaultRecordID {
		v, found, err = e.get(ctx, collection, store.DefaultRecordID)
		if err != nil {
			return nil, err
		}
		if found {
			e.logger.Debug("resolve", "collection", collection, "id", id, "hit", "default")
			return v, nil
		}
	}

	e.logger.Debug("resolve", "collection", collection, "id", id, "hit", "none")
	return value.String(""), nil
}

func (e *Engine) get(ctx context.Context, collection, id string) (value.Value, bool, error) {
	v, found, err := e.storage.Get(ctx, collection, id)
	if errors.Is(err, store.ErrCollectionNotFound) || errors.Is(err, store.ErrInvalidCollection) {
		e.recorder.ObserveStore("get", nil)
		return nil, false, NewUnknownCallError(collection, err)
	}
	e.recorder.ObserveStore("get", err)
	if err != nil {
		return nil, false, fmt.Errorf("resolve %s: %w", collection, err)
	}
	return v, found, nil
}
