// Package factory builds a library.Library from configuration.
package factory

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/barekit/lectern/pkg/database"
	"github.com/barekit/lectern/pkg/library"
	"github.com/barekit/lectern/pkg/library/consts"
	gormlib "github.com/barekit/lectern/pkg/library/gorm"
	"github.com/barekit/lectern/pkg/library/inmemory"
	mongolib "github.com/barekit/lectern/pkg/library/mongo"
	"github.com/barekit/lectern/pkg/library/neo4j"
	"github.com/barekit/lectern/pkg/library/redis"
)

type Type string

const (
	TypeSQLite   Type = "sqlite"
	TypePostgres Type = "postgres"
	TypeMySQL    Type = "mysql"
	TypeMSSQL    Type = "mssql"
	TypeRedis    Type = "redis"
	TypeNeo4j    Type = "neo4j"
	TypeMongo    Type = "mongo"
	TypeInMemory Type = "inmemory"
)

// Config holds configuration for library adapters.
type Config struct {
	Type             Type
	ConnectionString string
	Username         string
	Password         string
	DBName           string
	Debug            bool
}

// New creates a library adapter based on the configuration.
func New(ctx context.Context, cfg Config) (library.Library, error) {
	switch cfg.Type {
	case TypeSQLite, TypePostgres, TypeMySQL, TypeMSSQL:
		db, err := database.Open(database.Driver(cfg.Type), cfg.ConnectionString, cfg.Debug)
		if err != nil {
			return nil, err
		}
		lib, err := gormlib.New(db)
		if err != nil {
			return nil, err
		}
		return lib, nil

	case TypeRedis:
		opts, err := goredis.ParseURL(cfg.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := goredis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		return redis.New(client, ""), nil

	case TypeNeo4j:
		dbName := "neo4j"
		if cfg.DBName != "" {
			dbName = cfg.DBName
		}
		lib, err := neo4j.New(ctx, cfg.ConnectionString, cfg.Username, cfg.Password, dbName)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
		}
		return lib, nil

	case TypeMongo:
		opts := options.Client().ApplyURI(cfg.ConnectionString)
		client, err := mongo.Connect(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			return nil, fmt.Errorf("failed to ping mongo: %w", err)
		}
		dbName := consts.DefaultDBName
		if cfg.DBName != "" {
			dbName = cfg.DBName
		}
		return mongolib.New(client, dbName, consts.TableNameArtifacts), nil

	case TypeInMemory, "":
		return inmemory.New(), nil

	default:
		return nil, fmt.Errorf("unsupported library type: %s", cfg.Type)
	}
}
