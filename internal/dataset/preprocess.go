package dataset

import (
	"fmt"
	"time"

	"github.com/salescast/salescast/internal/contracts"
)

// ValidateSeries checks sorted observations for duplicate (entity, period)
// rows and gaps within an entity's series. Both are rejected: inventing
// volumes for missing months would poison lag features invisibly.
// When requireTarget is set (training data), a missing volume is also fatal.
func ValidateSeries(obs []contracts.Observation, requireTarget bool) error {
	for i := 1; i < len(obs); i++ {
		prev, cur := obs[i-1], obs[i]
		if prev.Entity != cur.Entity {
			continue
		}
		gap := contracts.PeriodsBetween(prev.Date, cur.Date)
		switch {
		case gap == 0:
			return contracts.NewSchemaError(fmt.Sprintf(
				"duplicate row for entity %s at %s", cur.Entity, contracts.FormatPeriod(cur.Date)))
		case gap > 1:
			return contracts.NewSchemaError(fmt.Sprintf(
				"series gap for entity %s: %s missing", cur.Entity,
				contracts.FormatPeriod(contracts.AddPeriods(prev.Date, 1))))
		}
	}

	if requireTarget {
		for _, o := range obs {
			if !o.HasVolume() {
				return contracts.NewSchemaError(fmt.Sprintf(
					"missing target value for entity %s at %s", o.Entity, contracts.FormatPeriod(o.Date)))
			}
		}
	}

	return nil
}

// SplitByCutoff partitions sorted observations into a training set (before
// cutoff) and a holdout set (cutoff and later). A calendar split, never
// random: a random split would leak future data into training.
func SplitByCutoff(obs []contracts.Observation, cutoff time.Time) (train, holdout []contracts.Observation) {
	cutoff = contracts.Period(cutoff)
	for _, o := range obs {
		if o.Date.Before(cutoff) {
			train = append(train, o)
		} else {
			holdout = append(holdout, o)
		}
	}
	return train, holdout
}

// LatestPeriod returns the maximum period present in obs.
func LatestPeriod(obs []contracts.Observation) (time.Time, bool) {
	var max time.Time
	for _, o := range obs {
		if o.Date.After(max) {
			max = o.Date
		}
	}
	return max, !max.IsZero()
}
