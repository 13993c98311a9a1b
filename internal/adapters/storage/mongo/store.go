// Package mongo stores transactions in a MongoDB collection. It is meant for
// shared inspector deployments where several processes report to one place.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/azikar24/WormaCeptor-sub003/internal/domain"
	"github.com/azikar24/WormaCeptor-sub003/internal/usecase"
)

const (
	transactionsCollection = "transactions"
	stateCollection        = "state"

	keyLastCleanup     = "last_cleanup_at"
	keyRetentionPeriod = "retention_period"
)

// record is the stored document. RequestedNS keeps full precision because
// BSON datetimes only hold milliseconds.
type record struct {
	domain.Transaction `bson:",inline"`
	RequestedNS        int64 `bson:"requested_ns"`
}

type stateDoc struct {
	Key   string `bson:"_id"`
	Value string `bson:"value"`
}

func toRecord(tx domain.Transaction) record {
	return record{Transaction: tx, RequestedNS: tx.RequestedAt.UnixNano()}
}

func (r record) transaction() domain.Transaction {
	tx := r.Transaction
	if r.RequestedNS != 0 {
		tx.RequestedAt = time.Unix(0, r.RequestedNS).UTC()
	}
	return tx
}

type Store struct {
	client *mongo.Client
	txs    *mongo.Collection
	state  *mongo.Collection
}

// Open connects to uri and prepares the collections in database.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	db := client.Database(database)
	s := &Store{client: client, txs: db.Collection(transactionsCollection), state: db.Collection(stateCollection)}
	_, err = s.txs.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "requested_ns", Value: 1}}})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo index: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Insert(ctx context.Context, tx domain.Transaction) error {
	_, err := s.txs.InsertOne(ctx, toRecord(tx))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert %d: %w", tx.ID, usecase.ErrDuplicateID)
	}
	if err != nil {
		return fmt.Errorf("insert %d: %w", tx.ID, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, tx domain.Transaction) error {
	filter := bson.D{{Key: "_id", Value: tx.ID}, {Key: "status", Value: domain.StatusRequested}}
	res, err := s.txs.ReplaceOne(ctx, filter, toRecord(tx))
	if err != nil {
		return fmt.Errorf("update %d: %w", tx.ID, err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if _, err := s.Get(ctx, tx.ID); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return fmt.Errorf("update %d: %w", tx.ID, usecase.ErrTerminal)
}

func (s *Store) Get(ctx context.Context, id int64) (domain.Transaction, error) {
	var r record
	err := s.txs.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Transaction{}, fmt.Errorf("get %d: %w", id, usecase.ErrNotFound)
	}
	if err != nil {
		return domain.Transaction{}, err
	}
	return r.transaction(), nil
}

// buildFilter translates f into a query document. Text matching is a
// case-insensitive substring match over the same fields the other stores use.
func buildFilter(f usecase.TransactionFilter) bson.D {
	filter := bson.D{}
	if f.BeforeID > 0 {
		filter = append(filter, bson.E{Key: "_id", Value: bson.D{{Key: "$lt", Value: f.BeforeID}}})
	}
	if q := strings.TrimSpace(f.Text); q != "" {
		pattern := regexp.QuoteMeta(q)
		re := func(field string) bson.D {
			return bson.D{{Key: field, Value: bson.D{{Key: "$regex", Value: pattern}, {Key: "$options", Value: "i"}}}}
		}
		code := bson.D{{Key: "$expr", Value: bson.D{{Key: "$regexMatch", Value: bson.D{
			{Key: "input", Value: bson.D{{Key: "$toString", Value: "$response.code"}}},
			{Key: "regex", Value: pattern},
		}}}}}
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			re("method"), re("path"), re("host"), re("status"), code,
		}})
	}
	return filter
}

func findOptions(f usecase.TransactionFilter) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	if f.Offset > 0 {
		opts.SetSkip(int64(f.Offset))
	}
	return opts
}

func (s *Store) Query(ctx context.Context, f usecase.TransactionFilter) ([]domain.Transaction, error) {
	cur, err := s.txs.Find(ctx, buildFilter(f), findOptions(f))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]domain.Transaction, 0, 32)
	for cur.Next(ctx) {
		var r record
		if err := cur.Decode(&r); err != nil {
			return nil, err
		}
		out = append(out, r.transaction())
	}
	return out, cur.Err()
}

func (s *Store) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.txs.DeleteMany(ctx, bson.D{{Key: "requested_ns", Value: bson.D{{Key: "$lt", Value: t.UnixNano()}}}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	res, err := s.txs.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) MaxID(ctx context.Context) (int64, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}}).SetProjection(bson.D{{Key: "_id", Value: 1}})
	var doc struct {
		ID int64 `bson:"_id"`
	}
	err := s.txs.FindOne(ctx, bson.D{}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	return doc.ID, err
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.txs.CountDocuments(ctx, bson.D{})
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	var doc stateDoc
	err := s.state.FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return doc.Value, true, nil
}

func (s *Store) put(ctx context.Context, key, value string) error {
	_, err := s.state.ReplaceOne(ctx, bson.D{{Key: "_id", Value: key}}, stateDoc{Key: key, Value: value},
		options.Replace().SetUpsert(true))
	return err
}

func (s *Store) LastCleanup(ctx context.Context) (time.Time, bool, error) {
	v, ok, err := s.get(ctx, keyLastCleanup)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse %s: %w", keyLastCleanup, err)
	}
	return t, true, nil
}

func (s *Store) SetLastCleanup(ctx context.Context, t time.Time) error {
	return s.put(ctx, keyLastCleanup, t.UTC().Format(time.RFC3339Nano))
}

func (s *Store) RetentionPeriod(ctx context.Context) (domain.RetentionPeriod, bool, error) {
	v, ok, err := s.get(ctx, keyRetentionPeriod)
	if err != nil || !ok {
		return "", false, err
	}
	p, err := domain.ParseRetentionPeriod(v)
	if err != nil {
		return "", false, err
	}
	return p, true, nil
}

func (s *Store) SetRetentionPeriod(ctx context.Context, p domain.RetentionPeriod) error {
	return s.put(ctx, keyRetentionPeriod, string(p))
}
