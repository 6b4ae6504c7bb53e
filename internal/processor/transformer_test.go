package processor

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"typesense-sync/internal/config"
	"typesense-sync/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestExpandDefaultFields(t *testing.T) {
	e := NewExpander(config.FieldsMap{}, testLogger())

	doc := models.Document{
		"id":        "x1",
		"name":      "t",
		"updatedAt": "2023-09-15T19:24:19.368Z",
	}
	got := e.Expand("Blog", doc)

	assert.Equal(t, models.Document{
		"id":             "x1",
		"name":           "t",
		"updatedAt":      "2023-09-15T19:24:19.368Z",
		"updatedAtYear":  "2023",
		"updatedAtMonth": "2023-09",
		"updatedAtDay":   "2023-09-15",
		"updatedAtHour":  "19",
	}, got)
	assert.Len(t, doc, 3, "input must not be mutated")
}

func TestExpandExtraDateFields(t *testing.T) {
	e := NewExpander(config.FieldsMap{DefaultFields: map[string]config.FieldList{
		"Blog": {ExtraDateFields: []string{"publishedAt"}},
	}}, testLogger())

	got := e.Expand("Blog", models.Document{
		"id":          "x1",
		"createdAt":   "2024-01-01T23:59:59+02:00",
		"publishedAt": "2024-02-29",
	})

	// createdAt is converted to UTC before bucketing
	assert.Equal(t, "2024", got["createdAtYear"])
	assert.Equal(t, "2024-01", got["createdAtMonth"])
	assert.Equal(t, "2024-01-01", got["createdAtDay"])
	assert.Equal(t, "21", got["createdAtHour"])

	assert.Equal(t, "2024-02-29", got["publishedAtDay"])
	assert.Equal(t, "00", got["publishedAtHour"])

	// other models do not get Blog's extra fields
	other := e.Expand("Post", models.Document{"id": "p1", "publishedAt": "2024-02-29"})
	assert.NotContains(t, other, "publishedAtYear")
}

func TestExpandUnparseableDate(t *testing.T) {
	e := NewExpander(config.FieldsMap{}, testLogger())

	doc := models.Document{
		"id":        "x1",
		"updatedAt": "not a date",
		"createdAt": int64(1694805859393),
	}
	assert.Equal(t, doc, e.Expand("Blog", doc))
}

func TestExpandIdempotent(t *testing.T) {
	e := NewExpander(config.FieldsMap{}, testLogger())

	once := e.Expand("Blog", models.Document{
		"id":        "x1",
		"createdAt": "2023-09-15T19:24:19.368Z",
		"updatedAt": "2023-09-16T01:02:03Z",
	})
	twice := e.Expand("Blog", once)

	assert.Equal(t, once, twice)
	assert.Len(t, twice, 11)
}

func TestParseDateLayouts(t *testing.T) {
	for _, s := range []string{
		"2023-09-15T19:24:19.368Z",
		"2023-09-15T19:24:19Z",
		"2023-09-15T19:24:19",
		"2023-09-15 19:24:19",
		"2023-09-15",
	} {
		_, ok := parseDate(s)
		assert.True(t, ok, s)
	}
	for _, v := range []interface{}{"", "15/09/2023", nil, true, 12.5} {
		_, ok := parseDate(v)
		assert.False(t, ok, v)
	}
}
