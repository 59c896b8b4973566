package demographic

import (
	"strings"

	"github.com/sells-group/billboard-signals/internal/model"
)

// sectorByPrefix maps a 2-digit SCIAN prefix to a vocabulary bucket.
// Unlisted prefixes (agriculture, mining, utilities, construction, other
// services, government) fall into SectorOther.
var sectorByPrefix = map[string]model.Sector{
	"43": model.SectorCommerceWholesale,
	"46": model.SectorCommerceRetail,
	"72": model.SectorHospitalityFood,
	"52": model.SectorFinancialServices,
	"62": model.SectorHealth,
	"61": model.SectorEducation,
	"71": model.SectorEntertainment,
	"31": model.SectorManufacturing,
	"32": model.SectorManufacturing,
	"33": model.SectorManufacturing,
	"48": model.SectorTransport,
	"49": model.SectorTransport,
	"51": model.SectorInformationMedia,
	"53": model.SectorRealEstate,
	"54": model.SectorProfessionalServices,
	"55": model.SectorCorporate,
	"56": model.SectorSupportServices,
}

// SectorFor returns the bucket for a SCIAN code. Only the first two digits
// are considered; anything shorter or non-numeric is SectorOther.
func SectorFor(code string) model.Sector {
	code = strings.TrimSpace(code)
	if len(code) < 2 || !isDigit(code[0]) || !isDigit(code[1]) {
		return model.SectorOther
	}
	if s, ok := sectorByPrefix[code[:2]]; ok {
		return s
	}
	return model.SectorOther
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// largeEmployerMarkers are fragments of the registry's employee-range labels
// ("31 a 50 personas", "51 a 100 personas", "101 a 250 personas",
// "251 y más personas"). Matching is a plain substring test and is
// intentionally crude; changing it moves locations between tiers.
var largeEmployerMarkers = []string{"101", "251", "51 a", "31 a"}

// IsLargeEmployer reports whether an employee-range label marks a large
// employer.
func IsLargeEmployer(label string) bool {
	for _, m := range largeEmployerMarkers {
		if strings.Contains(label, m) {
			return true
		}
	}
	return false
}
