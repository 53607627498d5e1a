package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/iris/pkg/models"
)

func TestEntityProps_RoundTripThroughNodeProperties(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	entity := &models.StoredEntity{
		ID: "e-1",
		EntityDescriptor: models.EntityDescriptor{
			Name:       "International Business Machines",
			Type:       "Company",
			Aliases:    []string{"IBM", "Big Blue"},
			Definition: "American technology company",
			Attributes: map[string][]string{"industry": {"technology"}},
			Source:     "wikidata",
		},
		CreatedAt: created,
		UpdatedAt: created.Add(time.Hour),
	}

	props, err := entityProps(entity)
	require.NoError(t, err)
	assert.Equal(t, `{"industry":["technology"]}`, props["attributes"])

	// the driver hands lists back as []any
	props["aliases"] = []any{"IBM", "Big Blue"}

	got, err := entityFromProps(props)
	require.NoError(t, err)
	assert.Equal(t, *entity, got)
}

func TestEntityProps_EmptyCollections(t *testing.T) {
	props, err := entityProps(&models.StoredEntity{ID: "e-2", EntityDescriptor: models.EntityDescriptor{Name: "x"}})
	require.NoError(t, err)
	assert.Equal(t, []string{}, props["aliases"])
	assert.Equal(t, "{}", props["attributes"])
}

func TestEntityFromProps_Errors(t *testing.T) {
	_, err := entityFromProps(map[string]any{"name": "no id"})
	require.Error(t, err)

	_, err = entityFromProps(map[string]any{"id": "e", "attributes": "{"})
	require.Error(t, err)
}

func TestParseTime(t *testing.T) {
	now := time.Now().UTC()
	assert.Equal(t, now, parseTime(now))
	assert.True(t, parseTime("garbage").IsZero())
	assert.True(t, parseTime(nil).IsZero())
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), parseTime("2024-01-02T03:04:05Z"))
}
