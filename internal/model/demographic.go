package model

import "time"

// Sector is one bucket of the closed business-sector vocabulary.
type Sector string

const (
	SectorCommerceWholesale    Sector = "commerce-wholesale"
	SectorCommerceRetail       Sector = "commerce-retail"
	SectorHospitalityFood      Sector = "hospitality-food"
	SectorFinancialServices    Sector = "financial-services"
	SectorHealth               Sector = "health"
	SectorEducation            Sector = "education"
	SectorEntertainment        Sector = "entertainment"
	SectorManufacturing        Sector = "manufacturing"
	SectorTransport            Sector = "transport"
	SectorInformationMedia     Sector = "information-media"
	SectorRealEstate           Sector = "real-estate"
	SectorProfessionalServices Sector = "professional-services"
	SectorCorporate            Sector = "corporate"
	SectorSupportServices      Sector = "support-services"
	SectorOther                Sector = "other"

	// SectorNone is reported as the dominant sector when no businesses were found.
	SectorNone Sector = "none"
)

// Sectors lists the vocabulary in its fixed enumeration order. The order is
// the dominant-sector tie-break and must not change.
var Sectors = []Sector{
	SectorCommerceWholesale,
	SectorCommerceRetail,
	SectorHospitalityFood,
	SectorFinancialServices,
	SectorHealth,
	SectorEducation,
	SectorEntertainment,
	SectorManufacturing,
	SectorTransport,
	SectorInformationMedia,
	SectorRealEstate,
	SectorProfessionalServices,
	SectorCorporate,
	SectorSupportServices,
	SectorOther,
}

// Tier is the four-level socioeconomic label.
type Tier string

const (
	TierBajo      Tier = "bajo"
	TierMedio     Tier = "medio"
	TierMedioAlto Tier = "medio-alto"
	TierAlto      Tier = "alto"
)

// BusinessRecord is one establishment from the business registry.
type BusinessRecord struct {
	Name               string `json:"name" yaml:"name"`
	SectorCode         string `json:"sector_code" yaml:"sector_code"` // SCIAN code; only the 2-digit prefix is used
	EmployeeRangeLabel string `json:"employee_range_label" yaml:"employee_range_label"`
}

// DemographicProfile summarizes the commercial surroundings of a location.
type DemographicProfile struct {
	NearbyBusinessCount       int                 `json:"nearby_business_count"`
	SectorCounts              map[Sector]int      `json:"sector_counts"`
	SectorExamples            map[Sector][]string `json:"sector_examples,omitempty"`
	DominantSector            Sector              `json:"dominant_sector"`
	SocioeconomicTier         Tier                `json:"socioeconomic_tier"`
	Score                     int                 `json:"score"`
	LargeEmployerCount        int                 `json:"large_employer_count"`
	AudienceProfileText       string              `json:"audience_profile_text"`
	CommercialEnvironmentText string              `json:"commercial_environment_text"`
	Summary                   string              `json:"summary"`
	ComputedAt                time.Time           `json:"computed_at"`
}
