package domain

// VectorRecord is one embedded chunk ready for the vector index.
type VectorRecord struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// Match is a ranked query hit.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
	Text     string         `json:"text"`
}

// NamespaceStats describes one namespace of the index.
type NamespaceStats struct {
	VectorCount int `json:"vector_count"`
}

// IndexStats describes the shared vector index.
type IndexStats struct {
	Dimension    int                       `json:"dimension"`
	TotalVectors int                       `json:"total_vectors"`
	Namespaces   map[string]NamespaceStats `json:"namespaces"`
}

// MetaString returns a string metadata value or "".
func MetaString(md map[string]any, key string) string {
	if v, ok := md[key].(string); ok {
		return v
	}
	return ""
}

// MetaBool returns a boolean metadata value and whether it was present.
func MetaBool(md map[string]any, key string) (bool, bool) {
	v, ok := md[key].(bool)
	return v, ok
}

// MetaInt returns an integer metadata value. Values decoded from JSON arrive as float64.
func MetaInt(md map[string]any, key string) (int, bool) {
	switch v := md[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case float32:
		return int(v), true
	}
	return 0, false
}
