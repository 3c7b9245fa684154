package consts

const (
	// DefaultDBName is the default database name.
	DefaultDBName = "lectern"

	// TableNameArtifacts is the default table/collection name for artifacts.
	TableNameArtifacts = "artifacts"

	// Column names
	ColID           = "id"
	ColKind         = "kind"
	ColSubject      = "subject"
	ColSource       = "source"
	ColThumbnailURL = "thumbnail_url"
	ColPrompt       = "prompt"
	ColContent      = "content"
	ColCreatedAt    = "created_at"

	// Redis keys
	KeyArtifact = "artifact:"
	KeyIndexAll = "artifacts:all"
	KeyIndex    = "artifacts:"

	// Neo4j specific
	LabelSubject   = "Subject"
	LabelArtifact  = "Artifact"
	RelHasArtifact = "HAS_ARTIFACT"
)
