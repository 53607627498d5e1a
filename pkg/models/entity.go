package models

import (
	"strings"
	"time"
)

// EntityDescriptor is an incoming entity description. It has no identity until it is stored.
type EntityDescriptor struct {
	Name       string              `json:"name" validate:"required"`
	Type       string              `json:"type,omitempty"`
	Aliases    []string            `json:"aliases,omitempty"`
	Definition string              `json:"definition,omitempty"`
	Attributes map[string][]string `json:"attributes,omitempty"`
	Source     string              `json:"source,omitempty"`
}

// Text returns the name, aliases and definition joined by single spaces.
// It is the text used for embedding and reranking.
func (e EntityDescriptor) Text() string {
	parts := make([]string, 0, len(e.Aliases)+2)
	parts = append(parts, e.Name)
	parts = append(parts, e.Aliases...)
	if e.Definition != "" {
		parts = append(parts, e.Definition)
	}
	return strings.Join(parts, " ")
}

// Names returns the name followed by the aliases
func (e EntityDescriptor) Names() []string {
	names := make([]string, 0, len(e.Aliases)+1)
	names = append(names, e.Name)
	return append(names, e.Aliases...)
}

// StoredEntity is an entity persisted by the entity store
type StoredEntity struct {
	ID string `json:"id"`
	EntityDescriptor
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
