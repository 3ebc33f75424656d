package drafts

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/lib/pq"

	"github.com/gt-quantum/fyi-gtm-sub001/internal/domain"
)

// Fields is a partial update keyed by column name.
type Fields map[string]any

type columnKind int

const (
	kindText columnKind = iota
	kindNullableText
	kindTextArray
	kindJSON
	kindStatus
	kindTime
)

// updatable lists the columns Update may change.
var updatable = map[string]columnKind{
	"url":               kindText,
	"name":              kindNullableText,
	"slug":              kindNullableText,
	"research_data":     kindJSON,
	"generated_content": kindNullableText,
	"frontmatter":       kindJSON,
	"logo_url":          kindNullableText,
	"screenshots":       kindTextArray,
	"extra_sources":     kindTextArray,
	"custom_sections":   kindJSON,
	"status":            kindStatus,
	"error_message":     kindNullableText,
	"published_at":      kindTime,
}

// normalize checks every key against the allow-list and converts values to
// their driver types.
func (f Fields) normalize() (map[string]any, error) {
	if len(f) == 0 {
		return nil, domain.ErrNoFieldsToUpdate
	}

	out := make(map[string]any, len(f))
	for key, raw := range f {
		kind, ok := updatable[key]
		if !ok {
			return nil, domain.NewValidationError(key, "field cannot be updated")
		}
		v, err := convert(kind, raw)
		if err == nil && key == "url" {
			err = validation.Validate(v, is.URL, validation.By(httpScheme))
		}
		if err != nil {
			return nil, domain.NewValidationError(key, err.Error())
		}
		out[key] = v
	}
	return out, nil
}

func convert(kind columnKind, raw any) (any, error) {
	switch kind {
	case kindText:
		s, ok := asString(raw)
		if !ok || s == "" {
			return nil, errors.New("must be a non-empty string")
		}
		return s, nil
	case kindNullableText:
		if raw == nil {
			return nil, nil
		}
		s, ok := asString(raw)
		if !ok {
			return nil, errors.New("must be a string or null")
		}
		return s, nil
	case kindTextArray:
		return asStringArray(raw)
	case kindJSON:
		return asJSON(raw)
	case kindStatus:
		s, _ := asString(raw)
		status := domain.Status(s)
		if !status.Valid() {
			return nil, fmt.Errorf("unknown status %q", s)
		}
		return string(status), nil
	case kindTime:
		return asTime(raw)
	default:
		return nil, errors.New("unsupported column")
	}
}

func asString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	case domain.Status:
		return string(v), true
	default:
		return "", false
	}
}

func asStringArray(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return pq.StringArray{}, nil
	case pq.StringArray:
		return v, nil
	case []string:
		return pq.StringArray(v), nil
	case []any:
		out := make(pq.StringArray, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, errors.New("must be an array of strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, errors.New("must be an array of strings")
	}
}

func asJSON(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case domain.JSONMap:
		return v, nil
	case map[string]any:
		return domain.JSONMap(v), nil
	case json.RawMessage:
		m := domain.JSONMap{}
		if err := json.Unmarshal(v, &m); err != nil {
			return nil, errors.New("must be a JSON object")
		}
		return m, nil
	default:
		m, err := domain.ToJSONMap(v)
		if err != nil {
			return nil, errors.New("must be a JSON object")
		}
		return m, nil
	}
}

func asTime(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		return *v, nil
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, errors.New("must be an RFC3339 timestamp")
		}
		return t, nil
	default:
		return nil, errors.New("must be an RFC3339 timestamp")
	}
}
