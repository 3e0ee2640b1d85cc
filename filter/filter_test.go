package filter

import (
	"testing"
	"time"

	"rentscout/models"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func f64(v float64) *float64 { return &v }
func intp(v int) *int         { return &v }

func ids(listings []models.Listing) []string {
	out := make([]string, len(listings))
	for i, l := range listings {
		out[i] = l.ID
	}
	return out
}

func sameIDs(t *testing.T, got []models.Listing, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("expected %v, got %v", want, g)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, g)
		}
	}
}

func sample() []models.Listing {
	return []models.Listing{
		{
			ID: "rome", Title: "Bright loft near Trastevere", City: "Roma", Type: "loft",
			Price: 850, Size: f64(60), Months: intp(12),
			Latitude: f64(41.89), Longitude: f64(12.47),
			CreatedAt: now.Add(-2 * 24 * time.Hour),
		},
		{
			ID: "milan", Title: "Stanza singola", Description: "Vicino al Politecnico", City: "Milano", Type: "Room",
			Price: 550, Months: intp(6),
			Latitude: f64(45.48), Longitude: f64(9.23),
			CreatedAt: now.Add(-30 * 24 * time.Hour),
		},
		{
			ID: "naples", Title: "Villa", Address: "Via Posillipo 1", City: "Napoli", Type: "house",
			Price: 1800, Size: f64(200),
			CreatedAt: now.Add(-1 * time.Hour),
		},
	}
}

func TestApply_PriceRange(t *testing.T) {
	c := models.FilterCriteria{PriceMin: f64(500), PriceMax: f64(900)}
	sameIDs(t, Apply(sample(), c, now), "rome", "milan")
}

func TestApply_EmptyCriteriaKeepsAll(t *testing.T) {
	in := sample()
	sameIDs(t, Apply(in, models.FilterCriteria{}, now), "rome", "milan", "naples")
}

func TestApply_Text(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"TRASTEVERE", []string{"rome"}},
		{"politecnico", []string{"milan"}},
		{"posillipo", []string{"naples"}},
		{"napoli", []string{"naples"}},
		{"berlin", nil},
		{"   ", []string{"rome", "milan", "naples"}},
	}

	for _, tt := range tests {
		got := Apply(sample(), models.FilterCriteria{Query: tt.query}, now)
		sameIDs(t, got, tt.want...)
	}
}

func TestApply_TypeCaseInsensitive(t *testing.T) {
	got := Apply(sample(), models.FilterCriteria{Types: []string{"room", "HOUSE"}}, now)
	sameIDs(t, got, "milan", "naples")
}

func TestApply_MissingNumericFailsMinimum(t *testing.T) {
	got := Apply(sample(), models.FilterCriteria{MinSize: f64(50)}, now)
	sameIDs(t, got, "rome", "naples")

	got = Apply(sample(), models.FilterCriteria{MinMonths: intp(1)}, now)
	sameIDs(t, got, "rome", "milan")

	got = Apply(sample(), models.FilterCriteria{MinMonths: intp(0)}, now)
	sameIDs(t, got, "rome", "milan", "naples")
}

func TestApply_RecentOnly(t *testing.T) {
	got := Apply(sample(), models.FilterCriteria{RecentOnly: true}, now)
	sameIDs(t, got, "rome", "naples")
}

func TestApply_BoundsExcludesMissingCoordinates(t *testing.T) {
	italy := &models.MapBounds{
		NorthEast: models.Coordinate{Lat: 47, Lng: 19},
		SouthWest: models.Coordinate{Lat: 36, Lng: 6},
	}
	got := Apply(sample(), models.FilterCriteria{Bounds: italy}, now)
	sameIDs(t, got, "rome", "milan")

	lazio := &models.MapBounds{
		NorthEast: models.Coordinate{Lat: 42.5, Lng: 14},
		SouthWest: models.Coordinate{Lat: 41, Lng: 11},
	}
	got = Apply(sample(), models.FilterCriteria{Bounds: lazio}, now)
	sameIDs(t, got, "rome")
}

func TestApply_NearbyRadius(t *testing.T) {
	rome := &models.Coordinate{Lat: 41.9028, Lng: 12.4964}
	annotated := Annotate(sample(), rome)

	got := Apply(annotated, models.FilterCriteria{NearbyRadiusKm: f64(50)}, now)
	sameIDs(t, got, "rome")

	got = Apply(annotated, models.FilterCriteria{NearbyRadiusKm: f64(1000)}, now)
	sameIDs(t, got, "rome", "milan")

	got = Apply(sample(), models.FilterCriteria{NearbyRadiusKm: f64(1000)}, now)
	sameIDs(t, got)
}

func TestApply_Idempotent(t *testing.T) {
	c := models.FilterCriteria{PriceMax: f64(1000), Query: "a"}
	once := Apply(sample(), c, now)
	twice := Apply(once, c, now)
	sameIDs(t, twice, ids(once)...)
}

func TestApply_Monotonic(t *testing.T) {
	base := models.FilterCriteria{PriceMax: f64(2000)}
	narrower := []models.FilterCriteria{
		{PriceMax: f64(2000), PriceMin: f64(600)},
		{PriceMax: f64(2000), Types: []string{"loft"}},
		{PriceMax: f64(2000), RecentOnly: true},
		{PriceMax: f64(2000), MinSize: f64(100)},
	}

	wide := Apply(sample(), base, now)
	for _, c := range narrower {
		narrow := Apply(sample(), c, now)
		if len(narrow) > len(wide) {
			t.Fatalf("adding a criterion grew the result: %v > %v", ids(narrow), ids(wide))
		}
		allowed := make(map[string]bool)
		for _, l := range wide {
			allowed[l.ID] = true
		}
		for _, l := range narrow {
			if !allowed[l.ID] {
				t.Fatalf("listing %s appeared only under a narrower criterion", l.ID)
			}
		}
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	in := sample()
	Apply(in, models.FilterCriteria{PriceMin: f64(1000)}, now)
	sameIDs(t, in, "rome", "milan", "naples")
}

func TestAnnotate(t *testing.T) {
	in := sample()
	out := Annotate(in, &models.Coordinate{Lat: 41.9028, Lng: 12.4964})

	if in[0].Distance != nil {
		t.Fatalf("input listing was annotated")
	}
	if out[2].Distance == nil || *out[2].Distance != 1e9 {
		t.Fatalf("expected sentinel for listing without coordinates, got %v", out[2].Distance)
	}
	if out[0].Distance == nil || *out[0].Distance > 5 {
		t.Fatalf("expected rome listing within 5 km, got %v", out[0].Distance)
	}

	cleared := Annotate(out, nil)
	if cleared[0].Distance != nil {
		t.Fatalf("expected distance cleared without a reference")
	}
}
