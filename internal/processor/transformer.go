package processor

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"typesense-sync/internal/config"
	"typesense-sync/internal/models"
)

// defaultDateFields are expanded for every model
var defaultDateFields = []string{"updatedAt", "createdAt"}

// dateLayouts are tried in order when parsing a date field
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Expander derives calendar facet fields from date attributes
type Expander struct {
	fields config.FieldsMap
	logger *logrus.Logger
}

// NewExpander creates an expander for the given per-model field configuration
func NewExpander(fields config.FieldsMap, logger *logrus.Logger) *Expander {
	return &Expander{
		fields: fields,
		logger: logger,
	}
}

// DateFields returns the fields expanded for model
func (e *Expander) DateFields(model string) []string {
	extra := e.fields.ExtraDateFields(model)
	out := make([]string, 0, len(defaultDateFields)+len(extra))
	out = append(out, defaultDateFields...)
	return append(out, extra...)
}

// Expand returns a copy of doc where every parseable date field f gains
// fYear, fMonth, fDay and fHour, computed in UTC.
func (e *Expander) Expand(model string, doc models.Document) models.Document {
	out := make(models.Document, len(doc)+8)
	for k, v := range doc {
		out[k] = v
	}

	for _, field := range e.DateFields(model) {
		value, ok := doc[field]
		if !ok {
			continue
		}
		t, ok := parseDate(value)
		if !ok {
			e.logger.Debugf("Field %s of %s is not a date, leaving it unexpanded", field, model)
			continue
		}
		t = t.UTC()
		out[field+"Year"] = fmt.Sprintf("%04d", t.Year())
		out[field+"Month"] = t.Format("2006-01")
		out[field+"Day"] = t.Format("2006-01-02")
		out[field+"Hour"] = t.Format("15")
	}

	return out
}

func parseDate(value interface{}) (time.Time, bool) {
	s, ok := value.(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
