package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-engine/internal/model"
)

func validPersona(kind model.PersonaKind, title string, rank int) model.Persona {
	p := model.Persona{
		Kind:       kind,
		Title:      title,
		Rank:       rank,
		MatchScore: 85,
		Characteristics: model.Characteristics{
			PainPoints:   []string{"manual data entry", "fragmented tooling"},
			Goals:        []string{"shorten sales cycles"},
			Objections:   []string{"integration effort"},
			ValueDrivers: []string{"time savings"},
		},
		Behaviors: model.Behaviors{
			BuyingProcess:     "committee-led evaluation",
			DecisionTimeline:  "3-6 months",
			PreferredChannels: "email and industry events",
			ResearchHabits:    "peer referrals and analyst reports",
		},
		MarketPotential: model.MarketPotential{
			EstimatedCompanies: 1200,
			AvgDealSizeUSD:     18000,
			ConversionRatePct:  2.5,
		},
		Locations: []string{"Saudi Arabia"},
	}
	switch kind {
	case model.PersonaBusiness:
		p.Demographics = model.Demographics{
			CompanySize:  "50-200 employees",
			Revenue:      "$5M-$20M",
			GeographyFit: "GCC metropolitan areas",
		}
	case model.PersonaDecisionMaker:
		p.Demographics = model.Demographics{
			AgeRange:    "35-50",
			Seniority:   "VP or Director",
			YearsInRole: "4-8 years",
		}
	}
	return p
}

func validBatch(kind model.PersonaKind) []model.Persona {
	return []model.Persona{
		validPersona(kind, "Technology SMB Adopters", 1),
		validPersona(kind, "Technology Mid-Market Transformers", 2),
		validPersona(kind, "Technology Enterprise Innovators", 3),
	}
}

func TestIsRealistic_AcceptsFullRecord(t *testing.T) {
	assert.True(t, IsRealistic(validPersona(model.PersonaBusiness, "Technology SMB Adopters", 1)))
	assert.True(t, IsRealistic(validPersona(model.PersonaDecisionMaker, "Operations Leaders", 2)))
}

func TestRealismIssues_PlaceholderTokens(t *testing.T) {
	for _, token := range []string{"unknown", "N/A", "Default", "NONE"} {
		p := validPersona(model.PersonaBusiness, "Technology SMB Adopters", 1)
		p.Behaviors.BuyingProcess = token
		issues := RealismIssues(p)
		require.NotEmpty(t, issues, "token %q should be rejected", token)
		assert.Contains(t, issues[0], "placeholder")
	}
}

func TestRealismIssues_PlaceholderListElement(t *testing.T) {
	p := validPersona(model.PersonaBusiness, "Technology SMB Adopters", 1)
	p.Characteristics.Goals = []string{"grow revenue", "n/a"}
	assert.False(t, IsRealistic(p))
}

func TestRealismIssues_GenericTitle(t *testing.T) {
	for _, title := range []string{"Buyer Persona 1", "Customer Profile A", "The Innovator Archetype"} {
		p := validPersona(model.PersonaBusiness, title, 1)
		assert.False(t, IsRealistic(p), "title %q should be rejected", title)
	}
}

func TestRealismIssues_RankAndScore(t *testing.T) {
	p := validPersona(model.PersonaBusiness, "Technology SMB Adopters", 0)
	assert.False(t, IsRealistic(p))

	p = validPersona(model.PersonaBusiness, "Technology SMB Adopters", 6)
	assert.False(t, IsRealistic(p))

	p = validPersona(model.PersonaBusiness, "Technology SMB Adopters", 1)
	p.MatchScore = 59
	assert.False(t, IsRealistic(p))

	p.MatchScore = 60
	assert.True(t, IsRealistic(p))
}

func TestRealismIssues_EmptyList(t *testing.T) {
	p := validPersona(model.PersonaBusiness, "Technology SMB Adopters", 1)
	p.Characteristics.PainPoints = nil
	assert.False(t, IsRealistic(p))
}

func TestRealismIssues_NonPositiveNumbers(t *testing.T) {
	p := validPersona(model.PersonaBusiness, "Technology SMB Adopters", 1)
	p.MarketPotential.AvgDealSizeUSD = 0
	assert.False(t, IsRealistic(p))
}

func TestValidateBatch_Accepts(t *testing.T) {
	require.NoError(t, ValidateBatch(model.PersonaBusiness, validBatch(model.PersonaBusiness)))
}

func TestValidateBatch_WrongSize(t *testing.T) {
	batch := validBatch(model.PersonaBusiness)[:2]
	err := ValidateBatch(model.PersonaBusiness, batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 personas")
}

func TestValidateBatch_DuplicateTitles(t *testing.T) {
	batch := validBatch(model.PersonaBusiness)
	batch[2].Title = "  technology smb  ADOPTERS "
	err := ValidateBatch(model.PersonaBusiness, batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate title")
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "technology smb adopters", NormalizeTitle("  Technology   SMB  Adopters "))
}
