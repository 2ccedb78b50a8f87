// Package mongodb stores users, costs, cached reports, and request logs in
// MongoDB, one collection each.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"costmanager/internal/core"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	UserCollection   = "users"
	CostCollection   = "costs"
	ReportCollection = "reports"
	LogCollection    = "logs"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect opens a client for uri and returns a Store bound to database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	s := &Store{client: client, db: client.Database(database)}
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the unique keys that make report and user inserts
// first-writer-wins, plus the cost range index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		ReportCollection: {{
			Keys:    bson.D{{Key: "userid", Value: 1}, {Key: "year", Value: 1}, {Key: "month", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		UserCollection: {{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		CostCollection: {{
			Keys: bson.D{{Key: "userid", Value: 1}, {Key: "created_at", Value: 1}},
		}},
	}
	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping MongoDB: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) AddCost(ctx context.Context, c core.Cost) (core.Cost, error) {
	doc := toCostDoc(c)
	doc.ID = bson.NewObjectID()
	if _, err := s.db.Collection(CostCollection).InsertOne(ctx, doc); err != nil {
		return core.Cost{}, fmt.Errorf("insert cost: %w", err)
	}
	return doc.toCore(), nil
}

func (s *Store) FindCosts(ctx context.Context, userID int64, from, to time.Time) ([]core.Cost, error) {
	filter := bson.M{
		"userid":     userID,
		"created_at": bson.M{"$gte": from, "$lt": to},
	}
	cur, err := s.db.Collection(CostCollection).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find costs: %w", err)
	}
	var docs []costDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode costs: %w", err)
	}
	costs := make([]core.Cost, len(docs))
	for i, d := range docs {
		costs[i] = d.toCore()
	}
	return costs, nil
}

func (s *Store) TotalCosts(ctx context.Context, userID int64) (float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"userid": userID}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$sum"}}}},
	}
	cur, err := s.db.Collection(CostCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("aggregate costs: %w", err)
	}
	var out []struct {
		Total float64 `bson:"total"`
	}
	if err := cur.All(ctx, &out); err != nil {
		return 0, fmt.Errorf("decode total: %w", err)
	}
	if len(out) == 0 {
		return 0, nil
	}
	return out[0].Total, nil
}

func (s *Store) FindReport(ctx context.Context, key core.ReportKey) (*core.MonthlyReport, error) {
	filter := bson.M{"userid": key.UserID, "year": key.Year, "month": key.Month}
	var doc reportDoc
	err := s.db.Collection(ReportCollection).FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find report %s: %w", key, err)
	}
	r := doc.toCore()
	return &r, nil
}

func (s *Store) InsertReport(ctx context.Context, r core.MonthlyReport) error {
	_, err := s.db.Collection(ReportCollection).InsertOne(ctx, toReportDoc(r))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert report %s: %w", r.Key(), core.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert report %s: %w", r.Key(), err)
	}
	return nil
}

func (s *Store) AddUser(ctx context.Context, u core.User) error {
	_, err := s.db.Collection(UserCollection).InsertOne(ctx, toUserDoc(u))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert user %d: %w", u.ID, core.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert user %d: %w", u.ID, err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*core.User, error) {
	var doc userDoc
	err := s.db.Collection(UserCollection).FindOne(ctx, bson.M{"id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	u := doc.toCore()
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]core.User, error) {
	cur, err := s.db.Collection(UserCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	users := make([]core.User, len(docs))
	for i, d := range docs {
		users[i] = d.toCore()
	}
	return users, nil
}

func (s *Store) AppendLog(ctx context.Context, e core.LogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	_, err := s.db.Collection(LogCollection).InsertOne(ctx, toLogDoc(e))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert log %s: %w", e.ID, core.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

func (s *Store) ListLogs(ctx context.Context) ([]core.LogEntry, error) {
	cur, err := s.db.Collection(LogCollection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find logs: %w", err)
	}
	var docs []logDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode logs: %w", err)
	}
	logs := make([]core.LogEntry, len(docs))
	for i, d := range docs {
		logs[i] = d.toCore()
	}
	return logs, nil
}
