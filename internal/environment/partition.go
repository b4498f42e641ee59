package environment

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/me/slurmjm/internal/batch"
	"github.com/me/slurmjm/pkg/model"
	"github.com/shopspring/decimal"
)

// Partition is one entry of the cluster's partition table.
type Partition struct {
	Name    string
	MaxTime time.Duration
}

// DefaultPartitions mirrors a typical cluster layout.
func DefaultPartitions() []Partition {
	return []Partition{
		{Name: "short", MaxTime: 2 * time.Hour},
		{Name: "medium", MaxTime: 24 * time.Hour},
		{Name: "defq", MaxTime: 4 * 24 * time.Hour},
	}
}

// InflateDuration adds buffer (a fraction, 0.25 means +25%) to d and rounds
// the result up to a whole minute, the granularity sbatch accepts.
func InflateDuration(d time.Duration, buffer float64) (time.Duration, error) {
	const op = "time and partition"
	if d <= 0 {
		return 0, model.NewValidationError(op, "duration must be positive, got %s", d)
	}
	if buffer < 0 {
		return 0, model.NewValidationError(op, "buffer must not be negative, got %v", buffer)
	}

	factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(buffer))
	nanos := decimal.NewFromInt(int64(d)).Mul(factor)
	minutes := nanos.Div(decimal.NewFromInt(int64(time.Minute))).Ceil()
	if !minutes.LessThan(decimal.NewFromInt(math.MaxInt64 / int64(time.Minute))) {
		return 0, model.NewValidationError(op, "inflated duration overflows")
	}
	return time.Duration(minutes.IntPart()) * time.Minute, nil
}

// SelectPartition returns the partition with the smallest limit that
// still accommodates d.
func SelectPartition(parts []Partition, d time.Duration) (Partition, error) {
	sorted := make([]Partition, len(parts))
	copy(sorted, parts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MaxTime < sorted[j].MaxTime })

	for _, p := range sorted {
		if p.MaxTime >= d {
			return p, nil
		}
	}
	return Partition{}, model.NewConfigurationError("time and partition",
		"no partition accommodates %s (%d configured)", FormatSlurmTime(d), len(parts))
}

// TimeAndPartition computes the time and partition directives for a job
// expected to run for d.
func TimeAndPartition(parts []Partition, d time.Duration, buffer float64) (batch.Directives, error) {
	alloc, err := InflateDuration(d, buffer)
	if err != nil {
		return batch.Directives{}, err
	}
	p, err := SelectPartition(parts, alloc)
	if err != nil {
		return batch.Directives{}, err
	}

	var out batch.Directives
	out.Set("partition", batch.String(p.Name))
	out.Set("time", batch.String(FormatSlurmTime(alloc)))
	return out, nil
}

// FormatSlurmTime renders d as days-hours:minutes:seconds.
func FormatSlurmTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	days := secs / 86400
	secs -= days * 86400
	h := secs / 3600
	secs -= h * 3600
	m := secs / 60
	s := secs - m*60
	return fmt.Sprintf("%d-%02d:%02d:%02d", days, h, m, s)
}
