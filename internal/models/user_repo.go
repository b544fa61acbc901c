package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type UserRepo interface {
	// SubscribeUsers delivers the full user list once initially and again
	// after every remote change. Order is unspecified.
	SubscribeUsers(ctx context.Context, onSnapshot func([]User)) (func(), error)
	SaveUser(ctx context.Context, user *User) error
}

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (mdb *MongodbRepo) SubscribeUsers(ctx context.Context, onSnapshot func([]User)) (func(), error) {
	col, err := mdb.GetCollection(ctx, mdb.dbName, UserColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	return mdb.watchCollection(ctx, UserColName, func(ctx context.Context) error {
		cursor, err := col.Find(ctx, bson.M{})
		if err != nil {
			return fmt.Errorf("error finding users: %w", err)
		}
		users := []User{}
		if err := cursor.All(ctx, &users); err != nil {
			return fmt.Errorf("error decoding users: %w", err)
		}
		onSnapshot(users)
		return nil
	})
}

func (mdb *MongodbRepo) SaveUser(ctx context.Context, user *User) error {
	if user == nil {
		return fmt.Errorf("user is nil")
	}
	col, err := mdb.GetCollection(ctx, mdb.dbName, UserColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}

	id, set, _, err := upsertUpdate(user, false, time.Time{})
	if err != nil {
		return fmt.Errorf("failed to prepare user %s: %w", user.ID, err)
	}

	_, err = col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set}, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("error upserting user %s: %w: %w", id, ErrDuplicate, err)
	}
	if err != nil {
		return fmt.Errorf("error upserting user %s: %w", id, err)
	}
	return nil
}
