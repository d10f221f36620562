package gateway

import (
	"context"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreDocumentStore is the DocumentStore backed by Cloud Firestore.
type FirestoreDocumentStore struct {
	client *firestore.Client
}

func NewFirestoreDocumentStore(ctx context.Context, app *firebase.App) (*FirestoreDocumentStore, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fail to get firestore client")
	}
	return &FirestoreDocumentStore{client: client}, nil
}

type firestoreDocument struct {
	snapshot *firestore.DocumentSnapshot
}

func (d *firestoreDocument) Id() string {
	return d.snapshot.Ref.ID
}

func (d *firestoreDocument) DataTo(v interface{}) error {
	return d.snapshot.DataTo(v)
}

func (s *FirestoreDocumentStore) doc(path DocPath) (*firestore.DocumentRef, error) {
	ref := s.client.Doc(path.String())
	if ref == nil {
		return nil, errors.Errorf("invalid document path %s", path.String())
	}
	return ref, nil
}

func (s *FirestoreDocumentStore) query(collection CollectionPath, order OrderBy) (firestore.Query, error) {
	ref := s.client.Collection(string(collection))
	if ref == nil {
		return firestore.Query{}, errors.Errorf("invalid collection path %s", collection)
	}
	dir := firestore.Asc
	if order.Direction == Desc {
		dir = firestore.Desc
	}
	return ref.OrderBy(order.Field, dir), nil
}

func (s *FirestoreDocumentStore) Set(ctx context.Context, path DocPath, data interface{}) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, data)
	return err
}

func (s *FirestoreDocumentStore) Get(ctx context.Context, path DocPath) (Document, error) {
	ref, err := s.doc(path)
	if err != nil {
		return nil, err
	}
	snapshot, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &firestoreDocument{snapshot: snapshot}, nil
}

func (s *FirestoreDocumentStore) Query(ctx context.Context, collection CollectionPath, order OrderBy) ([]Document, error) {
	q, err := s.query(collection, order)
	if err != nil {
		return nil, err
	}
	snapshots, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	return wrapFirestoreDocuments(snapshots), nil
}

func wrapFirestoreDocuments(snapshots []*firestore.DocumentSnapshot) []Document {
	docs := make([]Document, 0, len(snapshots))
	for _, snapshot := range snapshots {
		docs = append(docs, &firestoreDocument{snapshot: snapshot})
	}
	return docs
}

func (s *FirestoreDocumentStore) Listen(ctx context.Context, collection CollectionPath, order OrderBy) (<-chan Snapshot, error) {
	q, err := s.query(collection, order)
	if err != nil {
		return nil, err
	}
	it := q.Snapshots(ctx)

	out := make(chan Snapshot)
	go func() {
		defer close(out)
		defer it.Stop()
		for {
			qs, err := it.Next()
			var snapshot Snapshot
			if err == nil {
				var docs []*firestore.DocumentSnapshot
				docs, err = qs.Documents.GetAll()
				snapshot.Documents = wrapFirestoreDocuments(docs)
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				snapshot = Snapshot{Err: err}
			}
			select {
			case out <- snapshot:
			case <-ctx.Done():
				return
			}
			if snapshot.Err != nil {
				return
			}
		}
	}()
	return out, nil
}

func (s *FirestoreDocumentStore) ListenDocument(ctx context.Context, path DocPath) (<-chan DocumentSnapshot, error) {
	ref, err := s.doc(path)
	if err != nil {
		return nil, err
	}
	it := ref.Snapshots(ctx)

	out := make(chan DocumentSnapshot)
	go func() {
		defer close(out)
		defer it.Stop()
		for {
			snap, err := it.Next()
			var snapshot DocumentSnapshot
			switch {
			case status.Code(err) == codes.NotFound:
			case err != nil:
				if ctx.Err() != nil {
					return
				}
				snapshot.Err = err
			case snap.Exists():
				snapshot.Document = &firestoreDocument{snapshot: snap}
			}
			select {
			case out <- snapshot:
			case <-ctx.Done():
				return
			}
			if snapshot.Err != nil {
				return
			}
		}
	}()
	return out, nil
}

func (s *FirestoreDocumentStore) Close() error {
	return s.client.Close()
}
