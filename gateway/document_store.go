package gateway

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// CollectionPath is a slash separated collection path, e.g. "posts" or
// "posts/p1/comments".
type CollectionPath string

// DocPath addresses one document inside a collection.
type DocPath struct {
	Parent CollectionPath
	Id     string
}

func Collection(name string) CollectionPath {
	return CollectionPath(name)
}

func (c CollectionPath) Doc(id string) DocPath {
	return DocPath{Parent: c, Id: id}
}

// Sub returns a sub-collection of the document.
func (d DocPath) Sub(name string) CollectionPath {
	return CollectionPath(d.String() + "/" + name)
}

func (d DocPath) String() string {
	return string(d.Parent) + "/" + d.Id
}

type Direction int

const (
	Asc Direction = iota
	Desc
)

type OrderBy struct {
	Field     string
	Direction Direction
}

// Document is a single stored document. DataTo decodes it into a struct whose
// json / firestore tags name the stored fields.
type Document interface {
	Id() string
	DataTo(v interface{}) error
}

// Snapshot is a full point-in-time result set delivered by a collection
// listener. A snapshot carrying Err is always the last one on its channel.
type Snapshot struct {
	Documents []Document
	Err       error
}

// DocumentSnapshot is delivered by a single document listener. Document is nil
// when the document does not exist.
type DocumentSnapshot struct {
	Document Document
	Err      error
}

// DocumentStore is the boundary to the vendor document database.
//
// Listener channels are closed after an error snapshot or once ctx is done,
// cancelling ctx is how a caller unsubscribes.
type DocumentStore interface {
	Set(ctx context.Context, path DocPath, data interface{}) error
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, path DocPath) (Document, error)
	Query(ctx context.Context, collection CollectionPath, order OrderBy) ([]Document, error)
	Listen(ctx context.Context, collection CollectionPath, order OrderBy) (<-chan Snapshot, error)
	ListenDocument(ctx context.Context, path DocPath) (<-chan DocumentSnapshot, error)
	Close() error
}

// jsonDocument is the Document used by every adapter that stores the body as
// json rather than native vendor values.
type jsonDocument struct {
	id   string
	data []byte
}

func NewJSONDocument(id string, data []byte) Document {
	return &jsonDocument{id: id, data: data}
}

func (d *jsonDocument) Id() string {
	return d.id
}

func (d *jsonDocument) DataTo(v interface{}) error {
	return json.Unmarshal(d.data, v)
}

// pumpSnapshots re-runs query every time kicks fires and emits the full result
// on out. The first snapshot is emitted right away. It returns once ctx is
// done, kicks is closed or a query fails, closing out in every case.
func pumpSnapshots(ctx context.Context, kicks <-chan struct{}, query func(context.Context) ([]Document, error), out chan<- Snapshot) {
	defer close(out)

	emit := func() bool {
		docs, err := query(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			select {
			case out <- Snapshot{Err: err}:
			case <-ctx.Done():
			}
			return false
		}
		select {
		case out <- Snapshot{Documents: docs}:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-kicks:
			if !ok || !emit() {
				return
			}
		}
	}
}

// pumpDocument is pumpSnapshots for a single document. ErrNotFound from get is
// a valid snapshot with a nil Document.
func pumpDocument(ctx context.Context, kicks <-chan struct{}, get func(context.Context) (Document, error), out chan<- DocumentSnapshot) {
	defer close(out)

	emit := func() bool {
		doc, err := get(ctx)
		snapshot := DocumentSnapshot{Document: doc}
		if errors.Is(err, ErrNotFound) {
			snapshot.Document = nil
		} else if err != nil {
			if ctx.Err() != nil {
				return false
			}
			select {
			case out <- DocumentSnapshot{Err: err}:
			case <-ctx.Done():
			}
			return false
		}
		select {
		case out <- snapshot:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-kicks:
			if !ok || !emit() {
				return
			}
		}
	}
}
