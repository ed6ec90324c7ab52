package services

import (
	"math"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/shieldforce/guard-dispatch/internal/config"
	"github.com/shieldforce/guard-dispatch/internal/models"
)

// neutralScore is used when a sub-score cannot be computed
const neutralScore = 50.0

// ScoreBreakdown is the per-criterion detail of a match score
type ScoreBreakdown struct {
	ShieldScore       float64  `json:"shield_score"`
	DistanceScore     float64  `json:"distance_score"`
	SkillScore        float64  `json:"skill_score"`
	ReliabilityScore  float64  `json:"reliability_score"`
	AvailabilityScore float64  `json:"availability_score"`
	DistanceKm        *float64 `json:"distance_km,omitempty"`
	PreferredBonus    float64  `json:"preferred_bonus,omitempty"`
	Total             float64  `json:"total"`
}

// ScoreOptions tunes a scoring run
type ScoreOptions struct {
	Weights            *config.ScoreWeights // replaces the policy weights entirely
	PrioritizeShield   bool
	PrioritizeDistance bool
	PrioritizeSkill    bool
	MaxDistanceKm      *float64 // overrides the guard's own max travel distance
	PreferredIDs       []uuid.UUID
}

// Scorer computes 0-100 match scores for (personnel, shift) pairs
type Scorer struct {
	policy config.Policy
}

// NewScorer creates a new Scorer
func NewScorer(policy config.Policy) *Scorer {
	return &Scorer{policy: policy}
}

// weights resolves the effective weights and normalises them to sum to 1
func (s *Scorer) weights(opts ScoreOptions) config.ScoreWeights {
	w := s.policy.Weights
	if opts.Weights != nil {
		w = *opts.Weights
	}
	if opts.PrioritizeShield {
		w.ShieldScore = s.policy.PriorityWeight
	}
	if opts.PrioritizeDistance {
		w.Distance = s.policy.PriorityWeight
	}
	if opts.PrioritizeSkill {
		w.Skill = s.policy.PriorityWeight
	}

	// Negative weights would push the total outside 0-100
	w.ShieldScore = math.Max(0, w.ShieldScore)
	w.Distance = math.Max(0, w.Distance)
	w.Skill = math.Max(0, w.Skill)
	w.Reliability = math.Max(0, w.Reliability)
	w.Availability = math.Max(0, w.Availability)

	sum := w.ShieldScore + w.Distance + w.Skill + w.Reliability + w.Availability
	if sum <= 0 {
		w = s.policy.Weights
		sum = w.ShieldScore + w.Distance + w.Skill + w.Reliability + w.Availability
	}
	return config.ScoreWeights{
		ShieldScore:  w.ShieldScore / sum,
		Distance:     w.Distance / sum,
		Skill:        w.Skill / sum,
		Reliability:  w.Reliability / sum,
		Availability: w.Availability / sum,
	}
}

// Score computes the weighted match score of p for shift at a venue.
// venueLat/venueLng may be nil.
func (s *Scorer) Score(p *models.Personnel, shift *models.Shift, venueLat, venueLng *float64, opts ScoreOptions) ScoreBreakdown {
	var b ScoreBreakdown

	b.ShieldScore = models.ClampScore(p.ShieldScore)

	maxDist := s.policy.DefaultMaxDistanceKm
	if p.MaxTravelDistanceKm != nil && *p.MaxTravelDistanceKm > 0 {
		maxDist = *p.MaxTravelDistanceKm
	}
	if opts.MaxDistanceKm != nil && *opts.MaxDistanceKm > 0 {
		maxDist = *opts.MaxDistanceKm
	}
	if p.HasLocation() && venueLat != nil && venueLng != nil {
		d := HaversineKm(*p.Latitude, *p.Longitude, *venueLat, *venueLng)
		b.DistanceKm = &d
		b.DistanceScore = DistanceScore(d, maxDist)
	} else {
		b.DistanceScore = neutralScore
	}

	b.SkillScore = SkillScore(shift.Role, p.Skills)
	b.ReliabilityScore = models.ClampScore(p.Reliability())
	// Availability is a hard gate applied before scoring
	b.AvailabilityScore = 100

	w := s.weights(opts)
	total := b.ShieldScore*w.ShieldScore +
		b.DistanceScore*w.Distance +
		b.SkillScore*w.Skill +
		b.ReliabilityScore*w.Reliability +
		b.AvailabilityScore*w.Availability

	for _, id := range opts.PreferredIDs {
		if id == p.ID {
			b.PreferredBonus = s.policy.PreferredBonus
			total = math.Min(100, total+s.policy.PreferredBonus)
			break
		}
	}

	b.DistanceScore = round2(b.DistanceScore)
	b.Total = round2(models.ClampScore(total))
	return b
}

// DistanceScore is 100 at the venue, falling linearly to 0 at maxDist
// and 0 beyond it
func DistanceScore(distanceKm, maxDistKm float64) float64 {
	if maxDistKm <= 0 || distanceKm > maxDistKm {
		return 0
	}
	if distanceKm <= 0 {
		return 100
	}
	return 100 * (1 - distanceKm/maxDistKm)
}

// SkillScore is the share of role tokens found among the guard's skills.
// A guard with no listed skills gets the neutral score.
func SkillScore(role string, skills []string) float64 {
	if len(skills) == 0 {
		return neutralScore
	}

	have := make(map[string]bool)
	for _, skill := range skills {
		have[strings.ToLower(strings.TrimSpace(skill))] = true
		for _, tok := range tokenizeRole(skill) {
			have[tok] = true
		}
	}

	tokens := tokenizeRole(role)
	matching := 0
	for _, tok := range tokens {
		if have[tok] {
			matching++
		}
	}
	denom := len(tokens)
	if denom < 1 {
		denom = 1
	}
	return 100 * float64(matching) / float64(denom)
}

// tokenizeRole splits on whitespace, underscores and hyphens, lower-cased
func tokenizeRole(role string) []string {
	return strings.FieldsFunc(strings.ToLower(role), func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '-'
	})
}
