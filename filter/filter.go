// Package filter narrows and orders a listing collection by FilterCriteria.
package filter

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"rentscout/geo"
	"rentscout/models"
)

// RecentWindow is how far back RecentOnly looks.
const RecentWindow = 7 * 24 * time.Hour

// Predicate reports whether a listing passes one criterion.
type Predicate func(l *models.Listing) bool

// Build composes the active criteria into a single predicate, cheapest
// checks first. Unset criteria are skipped entirely.
func Build(c models.FilterCriteria, now time.Time) Predicate {
	var preds []Predicate

	if q := strings.TrimSpace(c.Query); q != "" {
		preds = append(preds, textPredicate(q))
	}
	if len(c.Types) > 0 {
		preds = append(preds, typePredicate(c.Types))
	}
	if c.PriceMin != nil {
		lo := *c.PriceMin
		preds = append(preds, func(l *models.Listing) bool { return l.Price >= lo })
	}
	if c.PriceMax != nil {
		hi := *c.PriceMax
		preds = append(preds, func(l *models.Listing) bool { return l.Price <= hi })
	}
	if c.MinSize != nil {
		minSize := *c.MinSize
		preds = append(preds, func(l *models.Listing) bool {
			size := 0.0
			if l.Size != nil {
				size = *l.Size
			}
			return size >= minSize
		})
	}
	if c.MinMonths != nil {
		minMonths := *c.MinMonths
		preds = append(preds, func(l *models.Listing) bool {
			months := 0
			if l.Months != nil {
				months = *l.Months
			}
			return months >= minMonths
		})
	}
	if c.RecentOnly {
		cutoff := now.Add(-RecentWindow)
		preds = append(preds, func(l *models.Listing) bool { return !l.CreatedAt.Before(cutoff) })
	}
	if c.Bounds != nil {
		b := *c.Bounds
		preds = append(preds, func(l *models.Listing) bool {
			p, ok := l.Coordinate()
			return ok && geo.WithinBounds(p, b)
		})
	}
	if c.NearbyRadiusKm != nil {
		radius := *c.NearbyRadiusKm
		preds = append(preds, func(l *models.Listing) bool {
			return l.Distance != nil && *l.Distance < geo.MissingDistance && *l.Distance <= radius
		})
	}

	return func(l *models.Listing) bool {
		for _, p := range preds {
			if !p(l) {
				return false
			}
		}
		return true
	}
}

// Apply returns the listings of in that satisfy c, in input order.
// in is not modified.
func Apply(in []models.Listing, c models.FilterCriteria, now time.Time) []models.Listing {
	pred := Build(c, now)
	out := make([]models.Listing, 0, len(in))
	for i := range in {
		if pred(&in[i]) {
			out = append(out, in[i])
		}
	}
	return out
}

// Annotate returns a copy of in with Distance set relative to ref.
// Listings without a usable position get MissingDistance. A nil ref clears
// any previous annotation.
func Annotate(in []models.Listing, ref *models.Coordinate) []models.Listing {
	out := make([]models.Listing, len(in))
	copy(out, in)
	for i := range out {
		if ref == nil {
			out[i].Distance = nil
			continue
		}
		d := geo.ListingDistance(ref, &out[i])
		out[i].Distance = &d
	}
	return out
}

func textPredicate(q string) Predicate {
	fold := cases.Fold()
	needle := fold.String(q)
	return func(l *models.Listing) bool {
		for _, field := range []string{l.Title, l.Description, l.Address, l.City} {
			if field != "" && strings.Contains(fold.String(field), needle) {
				return true
			}
		}
		return false
	}
}

func typePredicate(types []string) Predicate {
	fold := cases.Fold()
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[fold.String(strings.TrimSpace(t))] = struct{}{}
	}
	return func(l *models.Listing) bool {
		_, ok := set[fold.String(l.Type)]
		return ok
	}
}
