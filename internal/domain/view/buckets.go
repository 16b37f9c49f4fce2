package view

import "github.com/okian/tenderwatch/internal/domain/model"

// Bucket is a value bracket. A record falls in the bucket when its amount is
// in [Min, Max). MinExclusive and MaxInclusive flip the bound types and a Max
// of 0 means unbounded. Unknown buckets match only records without a value.
type Bucket struct {
	Key          string  `json:"key"`
	Label        string  `json:"label"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	MinExclusive bool    `json:"min_exclusive"`
	MaxInclusive bool    `json:"max_inclusive"`
	Unknown      bool    `json:"unknown"`
}

// Default bucket keys.
const (
	BucketUnder50k   = "lt50k"
	Bucket50kTo250k  = "50k-250k"
	Bucket250kTo1m   = "250k-1m"
	BucketOver1m     = "gt1m"
	BucketNoValue    = "unknown"
	bucketBoundary1m = 1_000_000
)

// DefaultBuckets are the five brackets shown on the dashboard.
// The 250k-1m bracket includes exactly 1,000,000; gt1m starts above it.
var DefaultBuckets = []Bucket{ //nolint:gochecknoglobals // read-only defaults
	{Key: BucketUnder50k, Label: "Under £50k", Min: 0, Max: 50_000},
	{Key: Bucket50kTo250k, Label: "£50k - £250k", Min: 50_000, Max: 250_000},
	{Key: Bucket250kTo1m, Label: "£250k - £1M", Min: 250_000, Max: bucketBoundary1m, MaxInclusive: true},
	{Key: BucketOver1m, Label: "Over £1M", Min: bucketBoundary1m, MinExclusive: true},
	{Key: BucketNoValue, Label: "Value unknown", Unknown: true},
}

// Contains reports whether the tender falls in the bucket.
func (b Bucket) Contains(t model.Tender) bool {
	amount, ok := t.ValueAmount()
	if b.Unknown {
		return !ok
	}
	if !ok || amount < b.Min || (b.MinExclusive && amount == b.Min) {
		return false
	}
	if b.Max == 0 {
		return true
	}
	if b.MaxInclusive {
		return amount <= b.Max
	}
	return amount < b.Max
}

func findBucket(buckets []Bucket, key string) (Bucket, bool) {
	for _, b := range buckets {
		if b.Key == key {
			return b, true
		}
	}
	return Bucket{}, false
}
