package bot

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/franckalain/caloriecounter/internal/models"
)

// Summary holds the totals of a range query.
type Summary struct {
	Calories float64
	Protein  float64
	Carbs    float64
	Fat      float64
	// Items lists food names in store order.
	Items []string
	// SkippedRows counts rows with at least one unusable number.
	SkippedRows int
	Warnings    []string
}

// Aggregate sums the rows. A missing or non-numeric cell is left out of its
// total and reported in Warnings; the rest of the row still counts.
func Aggregate(rows []models.LoggedRow) Summary {
	var sum Summary
	for i, row := range rows {
		skipped := false
		add := func(column, cell string, total *float64) {
			v, ok := parseAmount(cell)
			if !ok {
				skipped = true
				sum.Warnings = append(sum.Warnings, fmt.Sprintf("row %d (%s): skipping %s value %q", i+1, row.LoggedAt.Format(models.TimestampLayout), column, cell))
				return
			}
			*total += v
		}
		add("calories", row.Calories, &sum.Calories)
		add("protein", row.Protein, &sum.Protein)
		add("carbs", row.Carbs, &sum.Carbs)
		add("fat", row.Fat, &sum.Fat)
		if skipped {
			sum.SkippedRows++
		}

		name := strings.TrimSpace(row.FoodItem)
		if name == "" {
			name = models.MissingValue
		}
		sum.Items = append(sum.Items, name)
	}
	return sum
}

func parseAmount(cell string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
