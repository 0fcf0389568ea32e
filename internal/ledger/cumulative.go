package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CumulateOptions selects the metrics to accumulate and the partition.
type CumulateOptions struct {
	Metrics      []string
	ByFiscalYear bool // partition by (entity, fiscal year) instead of entity
	ByTarget     bool // partition on the crosswalk target instead of the source entity
}

type partitionKey struct {
	entity   string
	unmapped bool
	year     int
}

func (o CumulateOptions) partition(r Record) partitionKey {
	k := partitionKey{entity: r.Entity}
	if o.ByTarget {
		if r.Target == nil {
			k = partitionKey{unmapped: true}
		} else {
			k = partitionKey{entity: *r.Target}
		}
	}
	if o.ByFiscalYear {
		k.year = r.FiscalYear
	}
	return k
}

// Cumulate sorts records by period and fills Running with the prefix sum of every listed
// metric within each partition. Densify must run first or the totals skip periods.
func Cumulate(records []Record, opts CumulateOptions) []Record {
	out := cloneRecords(records)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Period != b.Period {
			return a.Period.Before(b.Period)
		}
		if a.Entity != b.Entity {
			return a.Entity < b.Entity
		}
		return a.FiscalYear < b.FiscalYear
	})

	totals := make(map[partitionKey]Metrics)
	for i := range out {
		key := opts.partition(out[i])
		running, ok := totals[key]
		if !ok {
			running = make(Metrics, len(opts.Metrics))
			totals[key] = running
		}
		if out[i].Running == nil {
			out[i].Running = make(Metrics, len(opts.Metrics))
		}
		for _, name := range opts.Metrics {
			running[name] = running.Get(name).Add(out[i].Metrics.Get(name))
			out[i].Running[name] = running[name]
		}
	}
	return out
}

// runningSums returns the prefix sums of values.
func runningSums(values []decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	sum := decimal.Zero
	for i, v := range values {
		sum = sum.Add(v)
		out[i] = sum
	}
	return out
}
