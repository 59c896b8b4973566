// Package demographic classifies the commercial surroundings of a location
// into a socioeconomic tier from nearby business-registry records.
package demographic

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/billboard-signals/internal/model"
)

// maxExamplesPerSector caps the display names kept per bucket.
const maxExamplesPerSector = 5

// Tier thresholds on the total score.
const (
	altoMinScore      = 15
	medioAltoMinScore = 8
	medioMinScore     = 3
)

// Density thresholds on the nearby business count.
const (
	highDensityAbove = 50
	activeMinCount   = 20
)

// Classify builds a DemographicProfile from the businesses found around a
// location. It is pure and total: an empty or nil slice yields the "bajo"
// tier with dominant sector "none". Input order does not affect counts,
// dominant sector, score, or tier.
//
// ComputedAt is left zero; callers stamp it.
func Classify(businesses []model.BusinessRecord) model.DemographicProfile {
	counts := make(map[model.Sector]int, len(model.Sectors))
	examples := make(map[model.Sector][]string)
	for _, s := range model.Sectors {
		counts[s] = 0
	}

	titler := cases.Title(language.Spanish)
	largeEmployers := 0
	for _, b := range businesses {
		sector := SectorFor(b.SectorCode)
		counts[sector]++

		if name := strings.TrimSpace(b.Name); name != "" && len(examples[sector]) < maxExamplesPerSector {
			examples[sector] = append(examples[sector], titler.String(name))
		}
		if IsLargeEmployer(b.EmployeeRangeLabel) {
			largeEmployers++
		}
	}

	score := Score(counts, largeEmployers)
	tier := TierForScore(score)
	dominant := DominantSector(counts)
	narrative := narratives[tier]

	return model.DemographicProfile{
		NearbyBusinessCount:       len(businesses),
		SectorCounts:              counts,
		SectorExamples:            examples,
		DominantSector:            dominant,
		SocioeconomicTier:         tier,
		Score:                     score,
		LargeEmployerCount:        largeEmployers,
		AudienceProfileText:       narrative.audience,
		CommercialEnvironmentText: narrative.environment,
		Summary:                   summaryLine(len(businesses), dominant),
	}
}

// DominantSector returns the bucket with the highest count. Ties go to the
// bucket that comes first in model.Sectors. Returns model.SectorNone when
// every count is zero.
func DominantSector(counts map[model.Sector]int) model.Sector {
	best := model.SectorNone
	bestCount := 0
	for _, s := range model.Sectors {
		if c := counts[s]; c > bestCount {
			best = s
			bestCount = c
		}
	}
	return best
}

// Score accumulates integer points from sector counts:
//   - 3 per 5 financial, professional-services or corporate businesses
//   - 2 per 5 entertainment or hospitality-food businesses
//   - 1 per 10 retail businesses
//   - 1 per 3 health or education businesses
//   - 2 per large employer
func Score(counts map[model.Sector]int, largeEmployers int) int {
	whiteCollar := counts[model.SectorFinancialServices] +
		counts[model.SectorProfessionalServices] +
		counts[model.SectorCorporate]
	leisure := counts[model.SectorEntertainment] + counts[model.SectorHospitalityFood]
	retail := counts[model.SectorCommerceRetail]
	services := counts[model.SectorHealth] + counts[model.SectorEducation]

	score := (whiteCollar/5)*3 +
		(leisure/5)*2 +
		retail/10 +
		services/3 +
		largeEmployers*2
	return score
}

// TierForScore maps a score to a socioeconomic tier.
func TierForScore(score int) model.Tier {
	switch {
	case score >= altoMinScore:
		return model.TierAlto
	case score >= medioAltoMinScore:
		return model.TierMedioAlto
	case score >= medioMinScore:
		return model.TierMedio
	default:
		return model.TierBajo
	}
}

// DensityQualifier describes how busy the surroundings are.
func DensityQualifier(count int) string {
	switch {
	case count > highDensityAbove:
		return "high density"
	case count >= activeMinCount:
		return "active"
	default:
		return "moderate"
	}
}

func summaryLine(count int, dominant model.Sector) string {
	return fmt.Sprintf("%d nearby businesses (%s commercial activity); dominant sector: %s",
		count, DensityQualifier(count), dominant)
}
