package pipeline

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/rewired-gh/covidboard/internal/models"
)

// Correlate computes the pairwise-complete Pearson correlation matrix over the
// allow-listed metrics present in the selection, in allow-list order.
// It returns models.ErrInsufficientData when fewer than two such metrics exist.
func Correlate(sel *models.Selection, allowList []string) (*models.CorrelationMatrix, error) {
	var fields []string
	seen := make(map[string]bool)
	for _, f := range allowList {
		if !seen[f] && sel.HasMetric(f) {
			seen[f] = true
			fields = append(fields, f)
		}
	}
	if len(fields) < 2 {
		return nil, models.ErrInsufficientData
	}

	matrix := models.NewCorrelationMatrix(fields)
	for i := range fields {
		for j := i; j < len(fields); j++ {
			xs, ys := completePairs(sel.Records, fields[i], fields[j])
			if r, ok := pearson(xs, ys); ok {
				if i == j {
					r = 1.0
				}
				matrix.Set(i, j, r)
			}
		}
	}
	return matrix, nil
}

// completePairs collects (x, y) for rows where both metrics are present, sorted
// so the result depends only on the multiset of pairs, not on row order.
func completePairs(records []models.Record, a, b string) ([]float64, []float64) {
	type pair struct{ x, y float64 }
	pairs := make([]pair, 0, len(records))
	for i := range records {
		x, okX := records[i].Value(a)
		y, okY := records[i].Value(b)
		if okX && okY {
			pairs = append(pairs, pair{x, y})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].x != pairs[j].x {
			return pairs[i].x < pairs[j].x
		}
		return pairs[i].y < pairs[j].y
	})

	xs := make([]float64, len(pairs))
	ys := make([]float64, len(pairs))
	for i, p := range pairs {
		xs[i], ys[i] = p.x, p.y
	}
	return xs, ys
}

// pearson returns the coefficient clamped to [-1, 1], or false when it is
// undefined (fewer than two pairs or a constant series).
func pearson(xs, ys []float64) (float64, bool) {
	if len(xs) < 2 || constant(xs) || constant(ys) {
		return 0, false
	}

	cov, err := stats.Covariance(xs, ys)
	if err != nil {
		return 0, false
	}
	vx, err := stats.SampleVariance(xs)
	if err != nil || vx <= 0 {
		return 0, false
	}
	vy, err := stats.SampleVariance(ys)
	if err != nil || vy <= 0 {
		return 0, false
	}

	r := cov / math.Sqrt(vx*vy)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return math.Max(-1, math.Min(1, r)), true
}

func constant(data []float64) bool {
	lo, err := stats.Min(data)
	if err != nil {
		return true
	}
	hi, err := stats.Max(data)
	if err != nil {
		return true
	}
	return lo == hi
}
