package models

import (
	"strings"
	"time"
)

// NutritionRecord represents the nutritional information extracted from one analysis.
// A nil field means the model could not determine that value.
type NutritionRecord struct {
	FoodItem *string `json:"food_item"`
	Calories *int    `json:"calories"` // kcal
	Protein  *int    `json:"protein"`  // grams
	Carbs    *int    `json:"carbs"`    // grams
	Fat      *int    `json:"fat"`      // grams
}

// IsEmpty reports whether every field is nil, the model's "unidentifiable input" signal.
func (r *NutritionRecord) IsEmpty() bool {
	return r == nil || (r.FoodItem == nil && r.Calories == nil && r.Protein == nil && r.Carbs == nil && r.Fat == nil)
}

// Identified reports whether the record names a food item.
func (r *NutritionRecord) Identified() bool {
	return r != nil && r.FoodItem != nil && strings.TrimSpace(*r.FoodItem) != ""
}

// LoggedRow is one data row read back from the log store.
// Numeric columns keep their raw cell text; the store does not enforce types.
type LoggedRow struct {
	LoggedAt time.Time
	FoodItem string
	Calories string
	Protein  string
	Carbs    string
	Fat      string
}

// DateRange is an inclusive range of calendar dates in local time.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// SingleDay reports whether the range covers exactly one date.
func (r DateRange) SingleDay() bool {
	return DateOf(r.Start).Equal(DateOf(r.End))
}

// Contains reports whether t falls on a date within the range.
func (r DateRange) Contains(t time.Time) bool {
	d := DateOf(t)
	return !d.Before(DateOf(r.Start)) && !d.After(DateOf(r.End))
}

// DateOf truncates t to midnight in its own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

const (
	// DateLayout is the calendar date format used in prompts and replies.
	DateLayout = "2006-01-02"
	// TimestampLayout is the format of the Date column in the log store.
	TimestampLayout = "2006-01-02 15:04:05"
	// MissingValue is written in place of a nil record field.
	MissingValue = "N/A"
)

// HeaderSchema is the fixed first row of the log store.
var HeaderSchema = []string{"Date", "Food Item", "Calories", "Protein (g)", "Carbs (g)", "Fat (g)"}
