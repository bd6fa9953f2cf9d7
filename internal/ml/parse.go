package ml

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/franckalain/caloriecounter/internal/models"
)

// StripCodeFence removes one leading ```json marker and one trailing ``` marker.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// decodeObject decodes exactly one JSON object into a key map, rejecting trailing data.
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var obj map[string]json.RawMessage
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("reply is not a JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON object")
	}
	return obj, nil
}

func requireKeys(obj map[string]json.RawMessage, keys ...string) error {
	for _, key := range keys {
		if _, ok := obj[key]; !ok {
			return fmt.Errorf("missing required field '%s' in response", key)
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// decodeCount decodes a non-negative integer or null.
func decodeCount(key string, raw json.RawMessage) (*int, error) {
	var v *int
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("field '%s': %w", key, err)
	}
	if v != nil && *v < 0 {
		return nil, fmt.Errorf("field '%s' is negative", key)
	}
	return v, nil
}

// DecodeNutrition parses a model reply into a NutritionRecord.
// The reply must hold food_item, calories and a macros object (or null) with
// protein, carbohydrates and fat. Extra keys are ignored.
func DecodeNutrition(reply string) (*models.NutritionRecord, error) {
	obj, err := decodeObject([]byte(StripCodeFence(reply)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}
	if err := requireKeys(obj, "food_item", "calories", "macros"); err != nil {
		return nil, err
	}

	rec := &models.NutritionRecord{}
	if err := json.Unmarshal(obj["food_item"], &rec.FoodItem); err != nil {
		return nil, fmt.Errorf("field 'food_item': %w", err)
	}
	if rec.Calories, err = decodeCount("calories", obj["calories"]); err != nil {
		return nil, err
	}

	if isNull(obj["macros"]) {
		return rec, nil
	}
	macros, err := decodeObject(obj["macros"])
	if err != nil {
		return nil, fmt.Errorf("field 'macros': %w", err)
	}
	if err := requireKeys(macros, "protein", "carbohydrates", "fat"); err != nil {
		return nil, err
	}
	if rec.Protein, err = decodeCount("protein", macros["protein"]); err != nil {
		return nil, err
	}
	if rec.Carbs, err = decodeCount("carbohydrates", macros["carbohydrates"]); err != nil {
		return nil, err
	}
	if rec.Fat, err = decodeCount("fat", macros["fat"]); err != nil {
		return nil, err
	}
	return rec, nil
}

// DecodeDateRange parses a model reply of the form
// {"start_date":"YYYY-MM-DD","end_date":"YYYY-MM-DD"}; dates are placed in loc.
// A null bound, an unparseable date or a reversed range is an error.
func DecodeDateRange(reply string, loc *time.Location) (models.DateRange, error) {
	obj, err := decodeObject([]byte(StripCodeFence(reply)))
	if err != nil {
		return models.DateRange{}, fmt.Errorf("failed to parse model response: %w", err)
	}
	if err := requireKeys(obj, "start_date", "end_date"); err != nil {
		return models.DateRange{}, err
	}

	start, err := decodeDate("start_date", obj["start_date"], loc)
	if err != nil {
		return models.DateRange{}, err
	}
	end, err := decodeDate("end_date", obj["end_date"], loc)
	if err != nil {
		return models.DateRange{}, err
	}
	if start.After(end) {
		return models.DateRange{}, fmt.Errorf("start date %s is after end date %s",
			start.Format(models.DateLayout), end.Format(models.DateLayout))
	}
	return models.DateRange{Start: start, End: end}, nil
}

func decodeDate(key string, raw json.RawMessage, loc *time.Location) (time.Time, error) {
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("field '%s': %w", key, err)
	}
	if s == nil {
		return time.Time{}, fmt.Errorf("field '%s' is null", key)
	}
	d, err := time.ParseInLocation(models.DateLayout, strings.TrimSpace(*s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("field '%s': %w", key, err)
	}
	return d, nil
}
