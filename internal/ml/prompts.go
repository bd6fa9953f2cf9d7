package ml

import (
	"fmt"
	"time"

	"github.com/franckalain/caloriecounter/internal/models"
)

// NutritionPrompt is sent ahead of every payload given to the analyzer.
const NutritionPrompt = `Analyze the food item from the provided text, image, or audio.
Your response MUST be a single, minified JSON object with no other text before or after it.
The JSON object should have the following structure:
{
  "food_item": "Name of the food",
  "calories": <total_calories_as_integer>,
  "macros": {
    "protein": <protein_in_grams_as_integer>,
    "carbohydrates": <carbs_in_grams_as_integer>,
    "fat": <fat_in_grams_as_integer>
  }
}
If you cannot determine the food item or its nutritional information from the input,
return a JSON object with null values for all fields.
Example for "an apple":
{"food_item":"Apple","calories":95,"macros":{"protein":0,"carbohydrates":25,"fat":0}}
`

// QueryPrompt builds the date-range instructions for a question asked on today.
func QueryPrompt(today time.Time) string {
	d := today.Format(models.DateLayout)
	return fmt.Sprintf(`Today is %s (%s).
Extract the date range the user is asking about from the message below.
Your response MUST be a single, minified JSON object with no other text before or after it:
{"start_date":"YYYY-MM-DD","end_date":"YYYY-MM-DD"}
Both dates are inclusive. Rules:
- "today": start_date and end_date are both %s.
- "yesterday": start_date and end_date are both the day before %s.
- "this week": start_date is the most recent Monday on or before %s, end_date is %s.
- "this month": start_date is the first day of the month of %s, end_date is %s.
- A single explicit date: start_date and end_date are both that date.
- An explicit range: use the dates as stated.
- Otherwise: {"start_date":null,"end_date":null}
Example for "what did I eat today": {"start_date":"%s","end_date":"%s"}

Message:
`, d, today.Weekday(), d, d, d, d, d, d, d, d)
}
