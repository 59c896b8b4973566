package demographic

import "github.com/sells-group/billboard-signals/internal/model"

type narrative struct {
	audience    string
	environment string
}

// narratives holds the canned descriptive texts per tier.
var narratives = map[model.Tier]narrative{
	model.TierAlto: {
		audience:    "Executives, professionals and high-income consumers with strong purchasing power.",
		environment: "Corporate and financial district with premium services, upscale dining and entertainment.",
	},
	model.TierMedioAlto: {
		audience:    "Young professionals and established families with above-average disposable income.",
		environment: "Consolidated commercial zone mixing offices, restaurants and specialty retail.",
	},
	model.TierMedio: {
		audience:    "Working families and commuters with steady everyday consumption.",
		environment: "Neighborhood commerce with grocery, pharmacy, schools and basic services.",
	},
	model.TierBajo: {
		audience:    "Local residents and passing traffic with price-sensitive consumption.",
		environment: "Low commercial activity with small family-run shops and informal trade.",
	},
}
