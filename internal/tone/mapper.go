package tone

// The prosody classifier reports emotions by name ("Concentration",
// "Determination", ...). Captions show a friendlier adverbial label instead,
// e.g. `[speaking carefully]: Your blood sugar is a bit high.`

// prosodyToLabel maps classifier emotion names to caption-friendly labels.
var prosodyToLabel = map[string]string{
	// Positive / Warm
	"Joy":          "happily",
	"Amusement":    "with amusement",
	"Excitement":   "excitedly",
	"Interest":     "with interest",
	"Satisfaction": "with satisfaction",
	"Pride":        "proudly",
	"Admiration":   "admiringly",
	"Adoration":    "warmly",
	"Love":         "warmly",
	"Gratitude":    "gratefully",
	"Relief":       "with relief",
	"Triumph":      "triumphantly",
	"Ecstasy":      "excitedly",
	// Calm / Neutral
	"Calmness":               "calmly",
	"Contemplation":          "thoughtfully",
	"Concentration":          "carefully",
	"Determination":          "firmly",
	"Realization":            "with realization",
	"Nostalgia":              "wistfully",
	"Aesthetic Appreciation": "appreciatively",
	// Concern / Negative
	"Sadness":        "sadly",
	"Disappointment": "with disappointment",
	"Distress":       "with distress",
	"Anxiety":        "anxiously",
	"Fear":           "nervously",
	"Confusion":      "uncertainly",
	"Doubt":          "hesitantly",
	"Embarrassment":  "hesitantly",
	"Shame":          "quietly",
	"Guilt":          "apologetically",
	"Awkwardness":    "uncomfortably",
	// Strong Negative
	"Anger":     "forcefully",
	"Contempt":  "dismissively",
	"Disgust":   "with displeasure",
	"Annoyance": "with irritation",
	// Empathic
	"Sympathy":      "sympathetically",
	"Empathic Pain": "with concern",
	"Compassion":    "compassionately",
	// Surprise
	"Surprise (positive)": "with pleasant surprise",
	"Surprise (negative)": "with alarm",
	"Awe":                 "in awe",
	// Other
	"Boredom":      "flatly",
	"Tiredness":    "wearily",
	"Pain":         "with pain",
	"Craving":      "eagerly",
	"Desire":       "earnestly",
	"Entrancement": "intently",
	"Horror":       "with horror",
}

// labelToCategory maps caption labels to the coarse category shown as the
// frontend tone badge.
var labelToCategory = map[string]string{
	"happily":             "positive",
	"with amusement":      "positive",
	"excitedly":           "positive",
	"with interest":       "positive",
	"warmly":              "positive",
	"gratefully":          "positive",
	"positively":          "positive",
	"calmly":              "neutral",
	"thoughtfully":        "neutral",
	"carefully":           "neutral",
	"firmly":              "neutral",
	"sadly":               "negative",
	"with disappointment": "negative",
	"anxiously":           "negative",
	"nervously":           "negative",
	"forcefully":          "negative",
	"with concern":        "concern",
	"sympathetically":     "concern",
	"compassionately":     "concern",
}

// MapProsodyToLabel converts a classifier emotion name to a caption label.
func MapProsodyToLabel(emotion string) string {
	if label, ok := prosodyToLabel[emotion]; ok {
		return label
	}
	return "speaking"
}

// Category returns the coarse category (positive/neutral/negative/concern)
// for a caption label.
func Category(label string) string {
	if category, ok := labelToCategory[label]; ok {
		return category
	}
	return "neutral"
}
