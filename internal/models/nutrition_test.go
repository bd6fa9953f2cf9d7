package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestNutritionRecordIdentified(t *testing.T) {
	var nilRec *NutritionRecord
	assert.True(t, nilRec.IsEmpty())
	assert.False(t, nilRec.Identified())

	assert.True(t, (&NutritionRecord{}).IsEmpty())
	assert.False(t, (&NutritionRecord{Calories: ptr(10)}).IsEmpty())
	assert.False(t, (&NutritionRecord{Calories: ptr(10)}).Identified())
	assert.False(t, (&NutritionRecord{FoodItem: ptr(" ")}).Identified())
	assert.True(t, (&NutritionRecord{FoodItem: ptr("Apple")}).Identified())
}

func TestDateRange(t *testing.T) {
	day := func(d, h int) time.Time { return time.Date(2024, 1, d, h, 0, 0, 0, time.UTC) }
	week := DateRange{Start: day(1, 0), End: day(7, 0)}

	assert.False(t, week.SingleDay())
	assert.True(t, week.Contains(day(1, 0)))
	assert.True(t, week.Contains(day(7, 23)))
	assert.False(t, week.Contains(day(8, 0)))
	assert.False(t, week.Contains(time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)))

	single := DateRange{Start: day(3, 9), End: day(3, 18)}
	assert.True(t, single.SingleDay())
	assert.True(t, single.Contains(day(3, 0)))
}
