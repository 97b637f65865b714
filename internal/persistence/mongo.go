package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/hostyard/hostyard/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const hostCollection = "hosts"

// mongoStore implements the Store interface using MongoDB. FindOneAndUpdate
// maps directly onto the server-side atomic findOneAndUpdate command.
type mongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Ensure mongoStore implements the Store interface
var _ Store = (*mongoStore)(nil)

// newMongoClient creates a MongoDB client from a mongodb:// URI
func newMongoClient(ctx context.Context, mongoURI string) (*mongo.Client, error) {
	if mongoURI == "" {
		return nil, errors.New("mongo URI is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	return client, nil
}

// newMongoStore creates a new MongoDB-backed host store
func newMongoStore(client *mongo.Client, database string) (*mongoStore, error) {
	if client == nil {
		return nil, errors.New("mongo client cannot be nil")
	}
	return &mongoStore{
		client: client,
		coll:   client.Database(database).Collection(hostCollection),
	}, nil
}

// Insert adds a new host record
func (s *mongoStore) Insert(ctx context.Context, host *models.Host) error {
	_, err := s.coll.InsertOne(ctx, host)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert host %s: %w", host.ID, err)
	}
	return nil
}

// FindOne returns the first host matching the filter
func (s *mongoStore) FindOne(ctx context.Context, filter models.HostFilter) (*models.Host, error) {
	var host models.Host
	err := s.coll.FindOne(ctx, filterDoc(filter)).Decode(&host)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find host: %w", err)
	}
	return &host, nil
}

// Find returns all hosts matching the filter, ordered by creation time
func (s *mongoStore) Find(ctx context.Context, filter models.HostFilter) ([]*models.Host, error) {
	opts := options.Find().SetSort(bson.D{{Key: "create_ts", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.coll.Find(ctx, filterDoc(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}

	hosts := make([]*models.Host, 0)
	if err := cursor.All(ctx, &hosts); err != nil {
		return nil, fmt.Errorf("failed to decode hosts: %w", err)
	}
	return hosts, nil
}

// FindOneAndUpdate atomically applies the mutation to the first matching host
func (s *mongoStore) FindOneAndUpdate(ctx context.Context, filter models.HostFilter, mutation models.HostMutation, ret ReturnDoc) (*models.Host, error) {
	// Mongo rejects empty update documents
	if mutation.IsZero() {
		return s.FindOne(ctx, filter)
	}

	opts := options.FindOneAndUpdate()
	if ret == ReturnAfter {
		opts.SetReturnDocument(options.After)
	} else {
		opts.SetReturnDocument(options.Before)
	}

	var host models.Host
	err := s.coll.FindOneAndUpdate(ctx, filterDoc(filter), mutationDoc(mutation), opts).Decode(&host)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update host: %w", err)
	}
	return &host, nil
}

// DeleteOne removes the first host matching the filter
func (s *mongoStore) DeleteOne(ctx context.Context, filter models.HostFilter) error {
	res, err := s.coll.DeleteOne(ctx, filterDoc(filter))
	if err != nil {
		return fmt.Errorf("failed to delete host: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Close disconnects the MongoDB client
func (s *mongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

// filterDoc translates a HostFilter into a query document
func filterDoc(f models.HostFilter) bson.M {
	doc := bson.M{}
	if f.ID != nil {
		doc["_id"] = f.ID.String()
	}
	if f.Name != nil {
		doc["name"] = *f.Name
	}
	if f.DaemonURL != nil {
		doc["daemon_url"] = *f.DaemonURL
	}
	if f.Status != nil {
		doc["status"] = string(*f.Status)
	}
	if f.Type != nil {
		doc["type"] = string(*f.Type)
	}
	if f.Schedulable != nil {
		doc["schedulable"] = *f.Schedulable
	}
	return doc
}

// mutationDoc translates a HostMutation into an update document. Field sets
// become $set, cluster deltas become $addToSet/$pullAll.
func mutationDoc(m models.HostMutation) bson.M {
	set := bson.M{}
	if m.Name != nil {
		set["name"] = *m.Name
	}
	if m.DaemonURL != nil {
		set["daemon_url"] = *m.DaemonURL
	}
	if m.Capacity != nil {
		set["capacity"] = *m.Capacity
	}
	if m.Status != nil {
		set["status"] = string(*m.Status)
	}
	if m.Schedulable != nil {
		set["schedulable"] = *m.Schedulable
	}
	if m.LogLevel != nil {
		set["log_level"] = *m.LogLevel
	}
	if m.LogType != nil {
		set["log_type"] = *m.LogType
	}
	if m.LogServer != nil {
		set["log_server"] = *m.LogServer
	}

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(m.AddClusters) > 0 {
		update["$addToSet"] = bson.M{"clusters": bson.M{"$each": m.AddClusters}}
	}
	if len(m.RemoveClusters) > 0 {
		update["$pullAll"] = bson.M{"clusters": m.RemoveClusters}
	}
	return update
}
