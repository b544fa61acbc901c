package models

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ProjectRepo interface {
	// SubscribeProjects delivers the full project list, newest first, once
	// initially and again after every remote change.
	SubscribeProjects(ctx context.Context, onSnapshot func([]Project)) (func(), error)
	SaveProject(ctx context.Context, project *Project) error
	DeleteProject(ctx context.Context, id string) error
}

// Validate checks field constraints and the five-phase invariant.
func (p Project) Validate() error {
	if err := Validate.Struct(p); err != nil {
		return err
	}
	return p.Stages.Validate()
}

// upsertUpdate builds the merge update for an entity document. created_at is
// only written on insert when the entity does not carry one.
func upsertUpdate(v interface{}, assignCreatedAt bool, now time.Time) (string, bson.M, bson.M, error) {
	doc, err := toDocument(v)
	if err != nil {
		return "", nil, nil, err
	}
	id, _ := doc["_id"].(string)
	if id == "" {
		return "", nil, nil, fmt.Errorf("document has no id")
	}
	delete(doc, "_id")

	set := mergeFields(doc)
	onInsert := bson.M{}
	if assignCreatedAt {
		if _, ok := set["created_at"]; !ok {
			onInsert["created_at"] = now
		}
	}
	return id, set, onInsert, nil
}

func (mdb *MongodbRepo) SubscribeProjects(ctx context.Context, onSnapshot func([]Project)) (func(), error) {
	col, err := mdb.GetCollection(ctx, mdb.dbName, ProjectColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})

	return mdb.watchCollection(ctx, ProjectColName, func(ctx context.Context) error {
		cursor, err := col.Find(ctx, bson.M{}, opts)
		if err != nil {
			return fmt.Errorf("error finding projects: %w", err)
		}
		projects := []Project{}
		if err := cursor.All(ctx, &projects); err != nil {
			return fmt.Errorf("error decoding projects: %w", err)
		}
		onSnapshot(projects)
		return nil
	})
}

func (mdb *MongodbRepo) SaveProject(ctx context.Context, project *Project) error {
	if project == nil {
		return fmt.Errorf("project is nil")
	}
	col, err := mdb.GetCollection(ctx, mdb.dbName, ProjectColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}

	id, set, onInsert, err := upsertUpdate(project, true, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to prepare project %s: %w", project.ID, err)
	}
	update := bson.M{"$set": set}
	if len(onInsert) > 0 {
		update["$setOnInsert"] = onInsert
	}

	_, err = col.UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("error upserting project %s: %w", id, err)
	}
	return nil
}

func (mdb *MongodbRepo) DeleteProject(ctx context.Context, id string) error {
	col, err := mdb.GetCollection(ctx, mdb.dbName, ProjectColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}
	if _, err := col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("error deleting project %s: %w", id, err)
	}
	return nil
}

// EnsureIndexes creates the indexes both collections are queried by.
func (mdb *MongodbRepo) EnsureIndexes(ctx context.Context) error {
	projects, err := mdb.GetCollection(ctx, mdb.dbName, ProjectColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}
	_, err = projects.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("created_at_desc"),
		},
		{
			Keys:    bson.D{{Key: "author_id", Value: 1}},
			Options: options.Index().SetName("author_id"),
		},
		{
			Keys:    bson.D{{Key: "tags", Value: 1}},
			Options: options.Index().SetName("tags"),
		},
	})
	if err != nil {
		return fmt.Errorf("error creating project indexes: %w", err)
	}

	users, err := mdb.GetCollection(ctx, mdb.dbName, UserColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}
	_, err = users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("error creating user indexes: %w", err)
	}
	return nil
}
