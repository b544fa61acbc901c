package models

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var Validate = validator.New()

const (
	DefaultDbName  = "humanfolio"
	ProjectColName = "projects"
	UserColName    = "users"
)

// streamRetryDelay is how long a broken change stream waits before reopening.
var streamRetryDelay = 2 * time.Second

// Store is the persistence collaborator the reconciler mirrors.
type Store interface {
	ProjectRepo
	UserRepo
}

type MongodbRepo struct {
	mongodbClient *mongo.Client
	dbName        string
	logger        *slog.Logger
}

func MongodbNewRepo(mongodbClient *mongo.Client, dbName string, logger *slog.Logger) *MongodbRepo {
	if dbName == "" {
		dbName = DefaultDbName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MongodbRepo{
		mongodbClient: mongodbClient,
		dbName:        dbName,
		logger:        logger,
	}
}

func (mdb *MongodbRepo) GetCollection(ctx context.Context, dbName, colName string) (*mongo.Collection, error) {
	if mdb.mongodbClient == nil {
		return nil, fmt.Errorf("mongodb client is not initialized")
	}
	return mdb.mongodbClient.Database(dbName).Collection(colName), nil
}

// watchCollection keeps a level-triggered subscription on colName: reload runs
// once for the initial snapshot and again after every batch of change events.
// A broken stream is reopened and followed by a fresh reload. The returned
// function stops the subscription and waits for its goroutine to exit.
func (mdb *MongodbRepo) watchCollection(ctx context.Context, colName string, reload func(context.Context) error) (func(), error) {
	col, err := mdb.GetCollection(ctx, mdb.dbName, colName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	wctx, cancel := context.WithCancel(ctx)
	stream, err := col.Watch(wctx, mongo.Pipeline{}, options.ChangeStream())
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open change stream on %s: %w", colName, err)
	}

	log := mdb.logger.With("collection", colName)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			if err := reload(wctx); err != nil && wctx.Err() == nil {
				log.Error("snapshot reload failed", "error", err)
			}
			for stream.Next(wctx) {
				// one reload covers every event already buffered
				for stream.RemainingBatchLength() > 0 && stream.Next(wctx) {
				}
				if err := reload(wctx); err != nil && wctx.Err() == nil {
					log.Error("snapshot reload failed", "error", err)
				}
			}
			streamErr := stream.Err()
			stream.Close(context.Background())
			if wctx.Err() != nil {
				return
			}
			log.Warn("change stream interrupted, reopening", "error", streamErr)

			select {
			case <-wctx.Done():
				return
			case <-time.After(streamRetryDelay):
			}

			for {
				stream, err = col.Watch(wctx, mongo.Pipeline{}, options.ChangeStream())
				if err == nil {
					break
				}
				if wctx.Err() != nil {
					return
				}
				log.Error("failed to reopen change stream", "error", err)
				select {
				case <-wctx.Done():
					return
				case <-time.After(streamRetryDelay):
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}
