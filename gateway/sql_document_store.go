package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Luismorlan/hexfeed/model"
	Logger "github.com/Luismorlan/hexfeed/utils/log"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	documentChannelPrefix = "hexfeed__documents__"
	DefaultPollInterval   = 2 * time.Second
)

// SQLDocumentStore keeps documents as jsonb rows in Postgres. Every Set
// publishes the document id on a redis channel named after the collection so
// listeners in any process re-query. Without redis, listeners poll.
type SQLDocumentStore struct {
	db           *gorm.DB
	rdb          *redis.Client
	pollInterval time.Duration
}

// NewSQLDocumentStore expects db to be migrated with model.Document. rdb may
// be nil.
func NewSQLDocumentStore(db *gorm.DB, rdb *redis.Client) *SQLDocumentStore {
	return &SQLDocumentStore{db: db, rdb: rdb, pollInterval: DefaultPollInterval}
}

// SetPollInterval changes how often listeners re-query without redis. Non
// positive values are ignored.
func (s *SQLDocumentStore) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		s.pollInterval = interval
	}
}

func documentChannel(collection CollectionPath) string {
	return documentChannelPrefix + string(collection)
}

func (s *SQLDocumentStore) Set(ctx context.Context, path DocPath, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "fail to encode "+path.String())
	}

	row := model.Document{
		Collection: string(path.Parent),
		Id:         path.Id,
		Data:       datatypes.JSON(raw),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return err
	}

	if s.rdb != nil {
		if err := s.rdb.Publish(ctx, documentChannel(path.Parent), path.Id).Err(); err != nil {
			// The row is written, listeners on this instance still catch up on
			// the next write.
			Logger.Log.Warnf("fail to publish write of %s: %v", path.String(), err)
		}
	}
	return nil
}

func (s *SQLDocumentStore) Get(ctx context.Context, path DocPath) (Document, error) {
	var row model.Document
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", string(path.Parent), path.Id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return NewJSONDocument(row.Id, row.Data), nil
}

func (s *SQLDocumentStore) Query(ctx context.Context, collection CollectionPath, order OrderBy) ([]Document, error) {
	direction := "ASC"
	if order.Direction == Desc {
		direction = "DESC"
	}

	var rows []model.Document
	err := s.db.WithContext(ctx).
		Where("collection = ?", string(collection)).
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:                "CAST(data ->> ? AS numeric) " + direction + ", id",
			Vars:               []interface{}{order.Field},
			WithoutParentheses: true,
		}}).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, NewJSONDocument(row.Id, row.Data))
	}
	return docs, nil
}

// kicks returns a channel that fires whenever a document of collection is
// written, or on every poll tick when redis is not configured. accept filters
// by document id.
func (s *SQLDocumentStore) kicks(ctx context.Context, collection CollectionPath, accept func(id string) bool) (<-chan struct{}, error) {
	kicks := make(chan struct{}, 1)
	kick := func() {
		select {
		case kicks <- struct{}{}:
		default:
		}
	}

	if s.rdb == nil {
		go func() {
			defer close(kicks)
			ticker := time.NewTicker(s.pollInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					kick()
				}
			}
		}()
		return kicks, nil
	}

	sub := s.rdb.Subscribe(ctx, documentChannel(collection))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, errors.Wrap(err, "fail to subscribe to "+string(collection))
	}
	go func() {
		defer close(kicks)
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				if accept(msg.Payload) {
					kick()
				}
			}
		}
	}()
	return kicks, nil
}

func (s *SQLDocumentStore) Listen(ctx context.Context, collection CollectionPath, order OrderBy) (<-chan Snapshot, error) {
	kicks, err := s.kicks(ctx, collection, func(string) bool { return true })
	if err != nil {
		return nil, err
	}
	out := make(chan Snapshot)
	go pumpSnapshots(ctx, kicks, func(ctx context.Context) ([]Document, error) {
		return s.Query(ctx, collection, order)
	}, out)
	return out, nil
}

func (s *SQLDocumentStore) ListenDocument(ctx context.Context, path DocPath) (<-chan DocumentSnapshot, error) {
	kicks, err := s.kicks(ctx, path.Parent, func(id string) bool { return id == path.Id })
	if err != nil {
		return nil, err
	}
	out := make(chan DocumentSnapshot)
	go pumpDocument(ctx, kicks, func(ctx context.Context) (Document, error) {
		return s.Get(ctx, path)
	}, out)
	return out, nil
}

func (s *SQLDocumentStore) Close() error {
	if s.rdb != nil {
		return s.rdb.Close()
	}
	return nil
}
