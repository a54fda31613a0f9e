package domain

// FunctionEmbedding is the vectorized counterpart of a FunctionRecord. It
// carries the same identity (source URL + file path + function name) and is
// created, replaced, and deleted in lock-step with the record's generation.
type FunctionEmbedding struct {
	SourceURL    string    `json:"source_url"    db:"source_url"`
	FilePath     string    `json:"file_path"     db:"file_path"`
	FunctionName string    `json:"function_name" db:"function_name"`
	Content      string    `json:"content"       db:"content"`
	Vector       []float32 `json:"-"             db:"vector"`
}

// SimilarFunction is returned by semantic search, including the similarity
// score derived from the store's distance metric.
type SimilarFunction struct {
	SourceURL    string  `json:"source_url"`
	FilePath     string  `json:"file_path"`
	FunctionName string  `json:"function_name"`
	Content      string  `json:"content"`
	Similarity   float64 `json:"similarity"`
}
