package filter

import (
	"sort"

	"rentscout/geo"
	"rentscout/models"
)

// DefaultSort applies when the criteria name no ordering.
const DefaultSort = models.SortDateDesc

// EffectiveSort resolves the ordering for c. SortByDistance wins over SortBy.
func EffectiveSort(c models.FilterCriteria) models.SortKey {
	if c.SortByDistance {
		return models.SortDistance
	}
	if c.SortBy == "" || !c.SortBy.Valid() {
		return DefaultSort
	}
	return c.SortBy
}

// Sort returns a stably ordered copy of in. Listings without a distance
// sort after all others under SortDistance.
func Sort(in []models.Listing, key models.SortKey) []models.Listing {
	out := make([]models.Listing, len(in))
	copy(out, in)

	var less func(a, b *models.Listing) bool
	switch key {
	case models.SortPriceAsc:
		less = func(a, b *models.Listing) bool { return a.Price < b.Price }
	case models.SortPriceDesc:
		less = func(a, b *models.Listing) bool { return a.Price > b.Price }
	case models.SortDistance:
		less = func(a, b *models.Listing) bool { return distanceOf(a) < distanceOf(b) }
	default:
		less = func(a, b *models.Listing) bool { return a.CreatedAt.After(b.CreatedAt) }
	}

	sort.SliceStable(out, func(i, j int) bool { return less(&out[i], &out[j]) })
	return out
}

func distanceOf(l *models.Listing) float64 {
	if l.Distance == nil {
		return geo.MissingDistance
	}
	return *l.Distance
}
