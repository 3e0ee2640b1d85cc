package filter

import (
	"testing"
	"time"

	"rentscout/models"
)

func TestSort_PriceAsc(t *testing.T) {
	in := []models.Listing{
		{ID: "a", Price: 1200},
		{ID: "b", Price: 700},
		{ID: "c", Price: 950},
	}
	sameIDs(t, Sort(in, models.SortPriceAsc), "b", "c", "a")
	sameIDs(t, Sort(in, models.SortPriceDesc), "a", "c", "b")
	sameIDs(t, in, "a", "b", "c")
}

func TestSort_StableOnTies(t *testing.T) {
	in := []models.Listing{
		{ID: "first", Price: 500},
		{ID: "cheap", Price: 100},
		{ID: "second", Price: 500},
		{ID: "third", Price: 500},
	}
	sameIDs(t, Sort(in, models.SortPriceAsc), "cheap", "first", "second", "third")
}

func TestSort_DateDescIsDefault(t *testing.T) {
	in := []models.Listing{
		{ID: "old", CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "new", CreatedAt: now},
		{ID: "mid", CreatedAt: now.Add(-24 * time.Hour)},
	}
	sameIDs(t, Sort(in, ""), "new", "mid", "old")
	sameIDs(t, Sort(in, models.SortDateDesc), "new", "mid", "old")
}

func TestSort_DistanceMissingLast(t *testing.T) {
	in := []models.Listing{
		{ID: "none"},
		{ID: "far", Distance: f64(300)},
		{ID: "sentinel", Distance: f64(1e9)},
		{ID: "near", Distance: f64(2.5)},
	}
	sameIDs(t, Sort(in, models.SortDistance), "near", "far", "none", "sentinel")
}

func TestEffectiveSort(t *testing.T) {
	tests := []struct {
		c    models.FilterCriteria
		want models.SortKey
	}{
		{models.FilterCriteria{}, models.SortDateDesc},
		{models.FilterCriteria{SortBy: models.SortPriceAsc}, models.SortPriceAsc},
		{models.FilterCriteria{SortBy: models.SortPriceAsc, SortByDistance: true}, models.SortDistance},
		{models.FilterCriteria{SortBy: "bogus"}, models.SortDateDesc},
	}

	for _, tt := range tests {
		if got := EffectiveSort(tt.c); got != tt.want {
			t.Errorf("EffectiveSort(%+v) = %s; want %s", tt.c, got, tt.want)
		}
	}
}
