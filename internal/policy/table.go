// Package policy attributes a defensibility tier to each surviving candidate
// and applies the tier's promotion thresholds. Tier attribution and threshold
// evaluation are pure: identical input always yields the identical decision.
package policy

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/veridian-kg/ingest-cli/internal/model"
)

// TierPolicy holds the promotion thresholds for one tier.
type TierPolicy struct {
	// MinConfidence is the minimum bundle confidence.
	MinConfidence float64 `yaml:"min_confidence"`
	// MinFragments is the minimum fragment count. For the weakest tier it
	// forms an either/or pair with MinDocuments.
	MinFragments int `yaml:"min_fragments"`
	// MinDocuments, when > 1, lets multiple independent source documents
	// satisfy corroboration instead of multiple fragments.
	MinDocuments int `yaml:"min_documents"`
	// MinDiversity is the minimum fraction of distinct source documents in
	// the bundle. Quarantines a single repeated pattern posing as
	// corroborated fact.
	MinDiversity float64 `yaml:"min_diversity"`
	// RequireExplicitFragment requires at least one fragment confident
	// enough to pass the strongest tier's confidence bar on its own.
	RequireExplicitFragment bool `yaml:"require_explicit_fragment"`
	// Weight scales bundle confidence into candidate confidence.
	Weight float64 `yaml:"weight"`
}

// Table maps every tier to its policy. The set of tiers is closed; adding one
// is a compile-time change here and in the model enum.
type Table map[model.DefensibilityTier]TierPolicy

// DefaultTable returns the built-in policy. Thresholds are strictly monotonic
// with tier strength: a stronger basis requires less corroboration.
func DefaultTable() Table {
	return Table{
		model.TierExplicit: {
			MinConfidence: 0.50,
			MinFragments:  1,
			Weight:        1.0,
		},
		model.TierMixed: {
			MinConfidence:           0.65,
			MinFragments:            1,
			RequireExplicitFragment: true,
			Weight:                  0.9,
		},
		model.TierDiscursive: {
			MinConfidence: 0.75,
			MinFragments:  2,
			MinDocuments:  2,
			MinDiversity:  0.5,
			Weight:        0.75,
		},
	}
}

// Validate checks the table covers every tier and that thresholds weaken
// monotonically as tiers strengthen. A non-monotonic override table is a
// configuration error, not a softer policy.
func (t Table) Validate() error {
	tiers := model.Tiers()
	for _, tier := range tiers {
		if _, ok := t[tier]; !ok {
			return eris.Errorf("policy: table missing tier %s", tier)
		}
	}
	for i := 0; i+1 < len(tiers); i++ {
		weaker, stronger := t[tiers[i]], t[tiers[i+1]]
		if stronger.MinConfidence > weaker.MinConfidence {
			return eris.Errorf("policy: tier %s requires higher confidence than weaker tier %s", tiers[i+1], tiers[i])
		}
		if stronger.MinFragments > weaker.MinFragments {
			return eris.Errorf("policy: tier %s requires more fragments than weaker tier %s", tiers[i+1], tiers[i])
		}
		if stronger.MinDiversity > weaker.MinDiversity {
			return eris.Errorf("policy: tier %s requires more diversity than weaker tier %s", tiers[i+1], tiers[i])
		}
	}
	for tier, p := range t {
		if p.Weight <= 0 || p.Weight > 1 {
			return eris.Errorf("policy: tier %s has weight %.2f outside (0,1]", tier, p.Weight)
		}
	}
	return nil
}

// tableFile is the yaml shape for threshold overrides.
type tableFile struct {
	Explicit   *TierPolicy `yaml:"explicit"`
	Mixed      *TierPolicy `yaml:"mixed"`
	Discursive *TierPolicy `yaml:"discursive"`
}

// LoadTable reads a yaml override file on top of the defaults and validates
// the result. An empty path returns the default table.
func LoadTable(path string) (Table, error) {
	table := DefaultTable()
	if path == "" {
		return table, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "policy: read table %s", path)
	}
	var f tableFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, eris.Wrapf(err, "policy: parse table %s", path)
	}

	if f.Explicit != nil {
		table[model.TierExplicit] = *f.Explicit
	}
	if f.Mixed != nil {
		table[model.TierMixed] = *f.Mixed
	}
	if f.Discursive != nil {
		table[model.TierDiscursive] = *f.Discursive
	}

	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}
