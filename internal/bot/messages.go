package bot

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/franckalain/caloriecounter/internal/logstore"
	"github.com/franckalain/caloriecounter/internal/models"
)

// Replies use Telegram's legacy Markdown.
const (
	MsgWelcome = "Hi %s! Send me a description of food, a photo of a meal, or a voice message describing it. I will analyze it and log its nutritional info to your food log.\n\nAsk me things like \"how many calories today\" or \"summary for this week\" to see your totals."
	MsgHelp    = "*What I understand*\n\n• A text description, a photo or a voice message of a meal: I log it.\n• A question starting with how, what, show, give, list, breakdown or summary: I total your log for the dates you mention.\n\n/start - welcome message\n/help - this message"

	MsgAnalyzing        = "Analyzing, please wait..."
	MsgCheckingLog      = "Checking your log, please wait..."
	MsgNotIdentified    = "Sorry, I couldn't identify the food item. Please try again with a clearer description or image."
	MsgRangeUnparseable = "Sorry, I couldn't understand which dates you're asking about. Try something like \"how many calories today\" or \"summary for this week\"."
	MsgNoEntries        = "No entries found %s."
	MsgNotSaved         = "I analyzed the food, but I failed to log it."
	MsgReadFailed       = "Sorry, I couldn't read your food log. Please check server logs."
	MsgStoreUnreachable = "Error: Could not connect to the food log. Please check server logs."
	MsgStoreNotFound    = "Error: The food log spreadsheet could not be found. Check the configured sheet ID and that the sheet is shared with the service account."
	MsgHeaderMismatch   = "Error: The first row of the food log doesn't match the expected columns. Please fix it to read: Date | Food Item | Calories | Protein (g) | Carbs (g) | Fat (g)"
	MsgMediaUnavailable = "Could not process the file. Please try sending it again."
	MsgUnsupported      = "Sorry, I can only handle text, photos and voice messages."
	MsgUnexpected       = "An unexpected error occurred. Please try again later."
)

// maxSummaryLength keeps a summary inside one Telegram message (4096 characters).
const maxSummaryLength = 4000

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// escape protects user and model text from being read as Markdown.
func escape(s string) string {
	return markdownEscaper.Replace(s)
}

// storeFailure maps a log store error onto its user message, or "" if the
// error is not one of the known kinds.
func storeFailure(err error) string {
	switch {
	case errors.Is(err, logstore.ErrHeaderMismatch):
		return MsgHeaderMismatch
	case errors.Is(err, logstore.ErrNotFound):
		return MsgStoreNotFound
	case errors.Is(err, logstore.ErrUnreachable):
		return MsgStoreUnreachable
	default:
		return ""
	}
}

func withUnit(v *int, unit string) string {
	if v == nil {
		return models.MissingValue
	}
	return strconv.Itoa(*v) + unit
}

// RenderLogged is the confirmation sent after a successful append.
func RenderLogged(rec *models.NutritionRecord) string {
	food := models.MissingValue
	if rec.FoodItem != nil {
		food = *rec.FoodItem
	}
	return fmt.Sprintf("Successfully logged!\n\n"+
		"• *Food:* %s\n"+
		"• *Calories:* %s\n"+
		"• *Protein:* %s\n"+
		"• *Carbs:* %s\n"+
		"• *Fat:* %s",
		escape(food), withUnit(rec.Calories, " kcal"), withUnit(rec.Protein, "g"), withUnit(rec.Carbs, "g"), withUnit(rec.Fat, "g"))
}

// RangeLabel renders "for *DATE*" or "from *START* to *END*".
func RangeLabel(rng models.DateRange) string {
	if rng.SingleDay() {
		return fmt.Sprintf("for *%s*", rng.Start.Format(models.DateLayout))
	}
	return fmt.Sprintf("from *%s* to *%s*", rng.Start.Format(models.DateLayout), rng.End.Format(models.DateLayout))
}

// RenderSummary renders the totals of a range query and the items, one per line.
// Items that would push the text past maxSummaryLength are counted instead of listed.
func RenderSummary(rng models.DateRange, sum Summary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Summary %s:\n\n", RangeLabel(rng))
	fmt.Fprintf(&sb, "• *Calories:* %s kcal\n", formatAmount(sum.Calories))
	fmt.Fprintf(&sb, "• *Protein:* %sg\n", formatAmount(sum.Protein))
	fmt.Fprintf(&sb, "• *Carbs:* %sg\n", formatAmount(sum.Carbs))
	fmt.Fprintf(&sb, "• *Fat:* %sg\n", formatAmount(sum.Fat))
	sb.WriteString("\n*Items:*")

	const moreReserve = len("\n…and 000000 more")
	for i, item := range sum.Items {
		line := "\n- " + escape(item)
		if sb.Len()+len(line)+moreReserve > maxSummaryLength {
			fmt.Fprintf(&sb, "\n…and %d more", len(sum.Items)-i)
			break
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// formatAmount prints at most two decimals, without trailing zeros.
func formatAmount(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

var plainTextReplacer = strings.NewReplacer("\\_", "_", "\\*", "*", "\\`", "`", "\\[", "[", "*", "")

// PlainText strips the Markdown used in replies, for transports that show raw text.
func PlainText(s string) string {
	return plainTextReplacer.Replace(s)
}
