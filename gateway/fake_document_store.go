package gateway

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Operations of FakeDocumentStore that can be made to fail.
const (
	OpSet    = "set"
	OpGet    = "get"
	OpQuery  = "query"
	OpListen = "listen"
)

// FakeDocumentStore is an in-memory DocumentStore. Documents are kept as json
// so that decoding goes through the same tags as the real adapters. Listeners
// re-query on every write, like the SQL adapter.
type FakeDocumentStore struct {
	mu        sync.RWMutex
	docs      map[CollectionPath]map[string][]byte
	listeners map[int]*fakeListener
	nextId    int
	failures  map[string]error
	writes    []DocPath

	// OnSet, when set, is called with every path before it is written.
	OnSet func(path DocPath)
}

type fakeListener struct {
	collection CollectionPath
	doc        *DocPath
	kicks      chan struct{}
	// err, once set by BreakListeners, is returned by the next read.
	err error
}

func NewFakeDocumentStore() *FakeDocumentStore {
	return &FakeDocumentStore{
		docs:      make(map[CollectionPath]map[string][]byte),
		listeners: make(map[int]*fakeListener),
		failures:  make(map[string]error),
	}
}

// Fail makes every following call of op return err, pass nil to heal.
func (f *FakeDocumentStore) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

func (f *FakeDocumentStore) failure(op string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.failures[op]
}

// Writes returns every path written so far, in order.
func (f *FakeDocumentStore) Writes() []DocPath {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]DocPath{}, f.writes...)
}

// Count returns the number of documents stored directly in collection.
func (f *FakeDocumentStore) Count(collection CollectionPath) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.docs[collection])
}

// ActiveListeners returns the number of listeners that have not been released.
func (f *FakeDocumentStore) ActiveListeners() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.listeners)
}

// BreakListeners delivers err to every open listener, which then closes.
func (f *FakeDocumentStore) BreakListeners(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.listeners {
		l.err = err
		select {
		case l.kicks <- struct{}{}:
		default:
		}
	}
}

func (f *FakeDocumentStore) listenerErr(id int) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if l, ok := f.listeners[id]; ok {
		return l.err
	}
	return nil
}

func (f *FakeDocumentStore) Set(ctx context.Context, path DocPath, data interface{}) error {
	if err := f.failure(OpSet); err != nil {
		return err
	}
	if f.OnSet != nil {
		f.OnSet(path)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "fail to encode "+path.String())
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[path.Parent]; !ok {
		f.docs[path.Parent] = make(map[string][]byte)
	}
	f.docs[path.Parent][path.Id] = raw
	f.writes = append(f.writes, path)

	for _, l := range f.listeners {
		if l.collection != path.Parent {
			continue
		}
		if l.doc != nil && l.doc.Id != path.Id {
			continue
		}
		select {
		case l.kicks <- struct{}{}:
		default:
		}
	}
	return nil
}

func (f *FakeDocumentStore) Get(ctx context.Context, path DocPath) (Document, error) {
	if err := f.failure(OpGet); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	raw, ok := f.docs[path.Parent][path.Id]
	if !ok {
		return nil, ErrNotFound
	}
	return NewJSONDocument(path.Id, raw), nil
}

func (f *FakeDocumentStore) Query(ctx context.Context, collection CollectionPath, order OrderBy) ([]Document, error) {
	if err := f.failure(OpQuery); err != nil {
		return nil, err
	}

	f.mu.RLock()
	type keyed struct {
		id  string
		raw []byte
		key float64
	}
	rows := []keyed{}
	for id, raw := range f.docs[collection] {
		var fields map[string]interface{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			f.mu.RUnlock()
			return nil, errors.Wrap(err, "fail to decode "+id)
		}
		key, _ := fields[order.Field].(float64)
		rows = append(rows, keyed{id: id, raw: raw, key: key})
	}
	f.mu.RUnlock()

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].key == rows[j].key {
			return rows[i].id < rows[j].id
		}
		if order.Direction == Desc {
			return rows[i].key > rows[j].key
		}
		return rows[i].key < rows[j].key
	})

	docs := make([]Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, NewJSONDocument(r.id, r.raw))
	}
	return docs, nil
}

func (f *FakeDocumentStore) addListener(l *fakeListener) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextId
	f.nextId++
	f.listeners[id] = l
	return id
}

func (f *FakeDocumentStore) removeListener(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.listeners, id)
}

func (f *FakeDocumentStore) Listen(ctx context.Context, collection CollectionPath, order OrderBy) (<-chan Snapshot, error) {
	if err := f.failure(OpListen); err != nil {
		return nil, err
	}

	l := &fakeListener{
		collection: collection,
		kicks:      make(chan struct{}, 1),
	}
	id := f.addListener(l)

	out := make(chan Snapshot)
	go func() {
		defer f.removeListener(id)
		query := func(ctx context.Context) ([]Document, error) {
			if err := f.listenerErr(id); err != nil {
				return nil, err
			}
			return f.Query(ctx, collection, order)
		}
		pumpSnapshots(ctx, l.kicks, query, out)
	}()
	return out, nil
}

func (f *FakeDocumentStore) ListenDocument(ctx context.Context, path DocPath) (<-chan DocumentSnapshot, error) {
	if err := f.failure(OpListen); err != nil {
		return nil, err
	}

	l := &fakeListener{
		collection: path.Parent,
		doc:        &path,
		kicks:      make(chan struct{}, 1),
	}
	id := f.addListener(l)

	out := make(chan DocumentSnapshot)
	go func() {
		defer f.removeListener(id)
		get := func(ctx context.Context) (Document, error) {
			if err := f.listenerErr(id); err != nil {
				return nil, err
			}
			return f.Get(ctx, path)
		}
		pumpDocument(ctx, l.kicks, get, out)
	}()
	return out, nil
}

func (f *FakeDocumentStore) Close() error {
	return nil
}
