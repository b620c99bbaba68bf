package models

// WeaviateObject is an object read from a Weaviate class.
type WeaviateObject struct {
	ID                 string         `json:"id"`
	Class              string         `json:"class"`
	Properties         map[string]any `json:"properties"`
	CreationTimeUnix   int64          `json:"creationTimeUnix,omitempty"`   // ms
	LastUpdateTimeUnix int64          `json:"lastUpdateTimeUnix,omitempty"` // ms
}

// WeaviateClass is the part of a class definition used to type result columns.
type WeaviateClass struct {
	Class       string              `json:"class"`
	Description string              `json:"description,omitempty"`
	Properties  []*WeaviateProperty `json:"properties"`
}

// WeaviateProperty is a property definition in a class.
type WeaviateProperty struct {
	Name        string   `json:"name"`
	DataType    []string `json:"dataType"`
	Description string   `json:"description,omitempty"`
}
