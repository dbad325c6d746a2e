package store

import (
	"context"
	"time"

	"civiclens-be/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoOpTimeout = 10 * time.Second

// MongoStore persists issues in a single collection. The whole aggregate
// lives in one document so the revision CAS covers ledger, progress, and
// resolution together.
type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(collection *mongo.Collection) *MongoStore {
	return &MongoStore{collection: collection}
}

// EnsureIndexes creates the category and department lookup indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "department", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	return err
}

func (s *MongoStore) Insert(ctx context.Context, issue *models.Issue) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	issue.Revision = 1
	_, err := s.collection.InsertOne(ctx, issue)
	return err
}

func (s *MongoStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	var issue models.Issue
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&issue)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

// Update replaces the document only if the stored revision still matches
// the one the caller read. A matched-count of zero means either the issue
// vanished or the revision moved; a follow-up existence check tells the
// two apart.
func (s *MongoStore) Update(ctx context.Context, issue *models.Issue) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	readRevision := issue.Revision
	issue.Revision = readRevision + 1

	result, err := s.collection.ReplaceOne(ctx,
		bson.M{"_id": issue.ID, "revision": readRevision}, issue)
	if err != nil {
		issue.Revision = readRevision
		return err
	}
	if result.MatchedCount == 0 {
		issue.Revision = readRevision
		count, err := s.collection.CountDocuments(ctx, bson.M{"_id": issue.ID})
		if err == nil && count == 0 {
			return ErrNotFound
		}
		return ErrRevisionConflict
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, q Query) ([]models.Issue, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	filter := bson.M{}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	if !q.CreatedBy.IsZero() {
		filter["createdBy"] = q.CreatedBy
	}
	if q.Unrouted {
		filter["$or"] = []bson.M{
			{"department": bson.M{"$exists": false}},
			{"department": ""},
		}
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}
