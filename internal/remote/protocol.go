// Package remote defines the protocol types and client for vizedit-server communication.
package remote

import (
	"github.com/kilupskalvis/vizedit/internal/models"
)

// CreateQueryRequest registers a new query on the server.
type CreateQueryRequest struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Source      models.QuerySource `json:"source"`
}

// EventList is the response of GET /api/events, newest first.
type EventList struct {
	Events []*models.Event `json:"events"`
}

// ServerInfo contains summary information about a server's contents.
type ServerInfo struct {
	QueryCount         int `json:"query_count"`
	VisualizationCount int `json:"visualization_count"`
}

// ErrorResponse is the structured error format returned by the server.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Detail  map[string]string `json:"detail,omitempty"`
}
