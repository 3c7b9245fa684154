package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/barekit/lectern/pkg/library"
	"github.com/barekit/lectern/pkg/library/consts"
)

type Neo4jLibrary struct {
	driver neo4j.DriverWithContext
	dbName string
}

// New creates a new Neo4jLibrary adapter.
func New(ctx context.Context, uri, username, password, dbName string) (*Neo4jLibrary, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}

	return &Neo4jLibrary{
		driver: driver,
		dbName: dbName,
	}, nil
}

// Save links the artifact to a node for its subject so related artifacts
// can be walked from one place.
func (l *Neo4jLibrary) Save(ctx context.Context, a library.Artifact) error {
	session := l.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: l.dbName})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
		MERGE (s:%s {name: $subject})
		CREATE (a:%s {
			%s: $id,
			%s: $kind,
			%s: $subject,
			%s: $source,
			%s: $thumbnailURL,
			%s: $prompt,
			%s: $content,
			%s: $createdAt
		})
		CREATE (s)-[:%s]->(a)
		RETURN a
		`, consts.LabelSubject, consts.LabelArtifact,
			consts.ColID, consts.ColKind, consts.ColSubject, consts.ColSource,
			consts.ColThumbnailURL, consts.ColPrompt, consts.ColContent, consts.ColCreatedAt,
			consts.RelHasArtifact)

		params := map[string]any{
			"id":           a.ID,
			"kind":         string(a.Kind),
			"subject":      a.Subject,
			"source":       a.Source,
			"thumbnailURL": a.ThumbnailURL,
			"prompt":       a.Prompt,
			"content":      a.Content,
			"createdAt":    a.CreatedAt.UnixNano(),
		}
		_, err := tx.Run(ctx, query, params)
		return nil, err
	})

	return err
}

func (l *Neo4jLibrary) List(ctx context.Context, q library.Query) ([]library.Artifact, error) {
	q = q.Normalize()

	session := l.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: l.dbName})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
		MATCH (a:%s)
		WHERE $kind = '' OR a.%s = $kind
		RETURN a.%s, a.%s, a.%s, a.%s, a.%s, a.%s, a.%s, a.%s
		ORDER BY a.%s DESC, a.%s DESC
		LIMIT $limit
		`, consts.LabelArtifact, consts.ColKind,
			consts.ColID, consts.ColKind, consts.ColSubject, consts.ColSource,
			consts.ColThumbnailURL, consts.ColPrompt, consts.ColContent, consts.ColCreatedAt,
			consts.ColCreatedAt, consts.ColID)

		result, err := tx.Run(ctx, query, map[string]any{"kind": string(q.Kind), "limit": int64(q.Limit)})
		if err != nil {
			return nil, err
		}

		artifacts := []library.Artifact{}
		for result.Next(ctx) {
			record := result.Record()

			str := func(col string) string {
				v, _ := record.Get("a." + col)
				s, _ := v.(string)
				return s
			}
			createdAt, _ := record.Get("a." + consts.ColCreatedAt)
			nanos, _ := createdAt.(int64)

			artifacts = append(artifacts, library.Artifact{
				ID:           str(consts.ColID),
				Kind:         library.Kind(str(consts.ColKind)),
				Subject:      str(consts.ColSubject),
				Source:       str(consts.ColSource),
				ThumbnailURL: str(consts.ColThumbnailURL),
				Prompt:       str(consts.ColPrompt),
				Content:      str(consts.ColContent),
				CreatedAt:    time.Unix(0, nanos).UTC(),
			})
		}
		return artifacts, result.Err()
	})

	if err != nil {
		return nil, err
	}

	return result.([]library.Artifact), nil
}

func (l *Neo4jLibrary) Close(ctx context.Context) error {
	return l.driver.Close(ctx)
}
