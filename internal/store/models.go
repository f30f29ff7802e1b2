package store

// Article is a fetched news item. Immutable once ingested; identity is ID.
type Article struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	PublishDate string `json:"publishDate"`
	Content     string `json:"content"`
	Source      string `json:"source"`
}

// Chunk is a sub-passage of an article, embedded and indexed independently.
type Chunk struct {
	ID        string    `json:"id"`
	ArticleID string    `json:"articleId"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
}

// EmbeddedArticle is an Article plus its embedding and optional chunks.
type EmbeddedArticle struct {
	Article
	Embedding []float32 `json:"-"`
	Chunks    []Chunk   `json:"chunks,omitempty"`
}

// Payload is the metadata stored alongside a vector. It is a closed union:
// only ArticlePayload and ChunkPayload implement it, and every consumer must
// type-switch over both kinds. Adding a kind means visiting each switch.
type Payload interface {
	payloadKind() string
}

type ArticlePayload struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	Link        string `json:"link"`
	PublishDate string `json:"publishDate"`
	Source      string `json:"source"`
}

func (ArticlePayload) payloadKind() string { return payloadTypeArticle }

type ChunkPayload struct {
	ID        string `json:"id"`
	ArticleID string `json:"articleId"`
	Text      string `json:"text"`
	Title     string `json:"title"`
	Link      string `json:"link"`
}

func (ChunkPayload) payloadKind() string { return payloadTypeChunk }

// VectorRecord is the unit persisted in the vector store.
type VectorRecord struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// SearchHit is a payload plus its cosine similarity score, produced per query.
type SearchHit struct {
	Payload Payload
	Score   float32
}

// Message is one turn of a session's history. Appended, never mutated;
// Sources is set on assistant messages only.
type Message struct {
	Role      string         `json:"role"` // "user" or "assistant"
	Content   string         `json:"content"`
	Sources   []CitedArticle `json:"sources,omitempty"`
	Timestamp int64          `json:"timestamp"` // epoch milliseconds
}

// CitedArticle is one entry of the deduplicated citation list attached to an
// answer; its position defines the bracket numeral used in the answer text.
type CitedArticle struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	Source      string `json:"source"`
	PublishDate string `json:"publishDate,omitempty"`
}
