package literal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/buger/jsonparser"

	"hitsflat/internal/record"
)

// ErrInvalidJSON is returned by ParseJSON for text that is not a single
// well-formed JSON value.
var ErrInvalidJSON = errors.New("literal: invalid JSON")

// ParseJSON decodes s into record values (see package record). Object key
// order is preserved and numbers keep their source text.
//
// jsonparser is lenient about malformed input, so the text is validated with
// encoding/json first.
func ParseJSON(s string) (any, error) {
	data := []byte(s)
	if !json.Valid(data) {
		return nil, ErrInvalidJSON
	}
	v, dt, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, fmt.Errorf("literal: %w", err)
	}
	return decodeJSON(v, dt)
}

func decodeJSON(v []byte, dt jsonparser.ValueType) (any, error) {
	switch dt {
	case jsonparser.String:
		return jsonparser.ParseString(v)
	case jsonparser.Number:
		return record.Number(v), nil
	case jsonparser.Boolean:
		return jsonparser.ParseBoolean(v)
	case jsonparser.Null:
		return nil, nil
	case jsonparser.Array:
		out := []any{}
		var firstErr error
		_, err := jsonparser.ArrayEach(v, func(value []byte, t jsonparser.ValueType, _ int, err error) {
			if firstErr != nil {
				return
			}
			if err != nil {
				firstErr = err
				return
			}
			e, err := decodeJSON(value, t)
			if err != nil {
				firstErr = err
				return
			}
			out = append(out, e)
		})
		if err == nil {
			err = firstErr
		}
		if err != nil {
			return nil, fmt.Errorf("literal: array: %w", err)
		}
		return out, nil
	case jsonparser.Object:
		obj := record.NewObject()
		err := jsonparser.ObjectEach(v, func(key, value []byte, t jsonparser.ValueType, _ int) error {
			k, err := jsonparser.ParseString(key)
			if err != nil {
				return err
			}
			e, err := decodeJSON(value, t)
			if err != nil {
				return err
			}
			obj.Set(k, e)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("literal: object: %w", err)
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("literal: unexpected value type %s", dt)
	}
}
