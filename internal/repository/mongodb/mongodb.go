// Package mongodb implements the repository interfaces on MongoDB.
//
// It is the default credential store (STORE_DRIVER=mongo). Two collections
// are used:
//
//	accounts      unique email, partial unique github.id
//	oauth_states  _id is the state value, TTL index on expires_at
//
// The TTL index lets MongoDB reap abandoned handshakes on its own; the
// server's periodic purge is still run so SQLite and Mongo behave alike.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/sakif/devpulse/internal/repository"
)

const (
	accountCollection = "accounts"
	stateCollection   = "oauth_states"

	disconnectTimeout = 10 * time.Second
)

var _ repository.Store = (*Store)(nil)

// Store holds a connected client and the application database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to uri, pings the primary and ensures indexes on dbName.
func New(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb: connecting: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb: pinging: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return s, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) accounts() *mongo.Collection {
	return s.db.Collection(accountCollection)
}

func (s *Store) states() *mongo.Collection {
	return s.db.Collection(stateCollection)
}
