package surreal

import "fmt"

const table = "vector_document"

// Index names as defined in SurrealDB.
const (
	vectorIndex = table + "_embedding"
	textIndex   = table + "_content_ft"
	sourceIndex = table + "_source"
)

// schemaSQL returns the table, analyzer and index definitions for the given dimension.
func schemaSQL(dims int) string {
	return fmt.Sprintf(`
    DEFINE TABLE IF NOT EXISTS %[1]s SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS doc_id ON %[1]s TYPE string;
    DEFINE FIELD IF NOT EXISTS source_type ON %[1]s TYPE string;
    DEFINE FIELD IF NOT EXISTS source_id ON %[1]s TYPE string;
    DEFINE FIELD IF NOT EXISTS source_collection ON %[1]s TYPE string;
    DEFINE FIELD IF NOT EXISTS owner_id ON %[1]s TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS team_id ON %[1]s TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS embedding ON %[1]s TYPE array<float>;
    DEFINE FIELD IF NOT EXISTS content ON %[1]s TYPE string;
    DEFINE FIELD IF NOT EXISTS metadata ON %[1]s FLEXIBLE TYPE option<object>;
    DEFINE FIELD IF NOT EXISTS tags ON %[1]s TYPE option<array<string>>;
    DEFINE FIELD IF NOT EXISTS keywords ON %[1]s TYPE option<array<string>>;
    DEFINE FIELD IF NOT EXISTS status ON %[1]s TYPE string DEFAULT "active";
    DEFINE FIELD IF NOT EXISTS created_at ON %[1]s TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON %[1]s TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS %[2]s ON %[1]s FIELDS source_type;
    DEFINE INDEX IF NOT EXISTS %[3]s ON %[1]s FIELDS embedding HNSW DIMENSION %[5]d DIST COSINE TYPE F32;
    DEFINE ANALYZER IF NOT EXISTS %[1]s_analyzer TOKENIZERS class FILTERS lowercase, ascii, snowball(english);
    DEFINE INDEX IF NOT EXISTS %[4]s ON %[1]s FIELDS content FULLTEXT ANALYZER %[1]s_analyzer BM25;
`, table, sourceIndex, vectorIndex, textIndex, dims)
}
