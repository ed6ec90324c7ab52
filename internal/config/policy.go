package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ScoreWeights are the relative weights of the candidate sub-scores.
// They are normalised before use, so only their ratios matter.
type ScoreWeights struct {
	ShieldScore  float64 `yaml:"shield_score" json:"shield_score" validate:"min=0"`
	Distance     float64 `yaml:"distance" json:"distance" validate:"min=0"`
	Skill        float64 `yaml:"skill" json:"skill" validate:"min=0"`
	Reliability  float64 `yaml:"reliability" json:"reliability" validate:"min=0"`
	Availability float64 `yaml:"availability" json:"availability" validate:"min=0"`
}

// PenaltyTier applies Penalty when at least MinNoticeHours of notice was given.
type PenaltyTier struct {
	MinNoticeHours float64 `yaml:"min_notice_hours"`
	Penalty        float64 `yaml:"penalty"`
}

// Policy collects the business constants of the dispatch engine.
type Policy struct {
	Weights              ScoreWeights  `yaml:"weights"`
	PriorityWeight       float64       `yaml:"priority_weight"`
	PreferredBonus       float64       `yaml:"preferred_bonus"`
	DefaultMaxDistanceKm float64       `yaml:"default_max_distance_km"`
	CancellationTiers    []PenaltyTier `yaml:"cancellation_tiers"`
	NoShowPenalty        float64       `yaml:"no_show_penalty"`
	LateThresholdMinutes float64       `yaml:"late_threshold_minutes"`
	SurgeMultiplier      float64       `yaml:"surge_multiplier"`
	SearchRadiusKm       float64       `yaml:"search_radius_km"`
	StandbyPoolSize      int           `yaml:"standby_pool_size"`
	BroadcastSize        int           `yaml:"broadcast_size"`
}

// DefaultPolicy returns the production defaults
func DefaultPolicy() Policy {
	return Policy{
		Weights: ScoreWeights{
			ShieldScore:  0.25,
			Distance:     0.20,
			Skill:        0.25,
			Reliability:  0.20,
			Availability: 0.10,
		},
		PriorityWeight:       0.40,
		PreferredBonus:       20,
		DefaultMaxDistanceKm: 30,
		CancellationTiers: []PenaltyTier{
			{MinNoticeHours: 48, Penalty: 0},
			{MinNoticeHours: 24, Penalty: 5},
			{MinNoticeHours: 12, Penalty: 10},
			{MinNoticeHours: 6, Penalty: 15},
			{MinNoticeHours: 0, Penalty: 20},
		},
		NoShowPenalty:        25,
		LateThresholdMinutes: 10,
		SurgeMultiplier:      1.5,
		SearchRadiusKm:       8.05,
		StandbyPoolSize:      50,
		BroadcastSize:        5,
	}
}

// LoadPolicy reads a YAML policy file on top of DefaultPolicy.
// Keys missing from the file keep their default value.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()

	data, err := os.ReadFile(path)
	if err != nil {
		return policy, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &policy); err != nil {
		return policy, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}

	if err := policy.Validate(); err != nil {
		return policy, err
	}

	return policy, nil
}

// Validate checks the policy is internally consistent and sorts the
// cancellation tiers from the largest notice down.
func (p *Policy) Validate() error {
	w := p.Weights
	if w.ShieldScore < 0 || w.Distance < 0 || w.Skill < 0 || w.Reliability < 0 || w.Availability < 0 {
		return fmt.Errorf("policy weights must be non-negative")
	}
	if w.ShieldScore+w.Distance+w.Skill+w.Reliability+w.Availability == 0 {
		return fmt.Errorf("policy weights must not all be zero")
	}
	if len(p.CancellationTiers) == 0 {
		return fmt.Errorf("policy requires at least one cancellation tier")
	}
	if p.SurgeMultiplier < 1 {
		return fmt.Errorf("surge multiplier must be >= 1, got %v", p.SurgeMultiplier)
	}
	if p.SearchRadiusKm <= 0 || p.DefaultMaxDistanceKm <= 0 {
		return fmt.Errorf("distances must be positive")
	}
	if p.StandbyPoolSize <= 0 || p.BroadcastSize <= 0 {
		return fmt.Errorf("pool and broadcast sizes must be positive")
	}

	sort.SliceStable(p.CancellationTiers, func(i, j int) bool {
		return p.CancellationTiers[i].MinNoticeHours > p.CancellationTiers[j].MinNoticeHours
	})
	return nil
}
