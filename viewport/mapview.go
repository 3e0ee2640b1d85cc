package viewport

import (
	"rentscout/geo"
	"rentscout/models"
)

// DefaultClusterThreshold is the marker count above which markers cluster.
const DefaultClusterThreshold = 50

// Marker is a single listing pin
type Marker struct {
	ID         string            `json:"id"`
	Coordinate models.Coordinate `json:"coordinate"`
	Price      float64           `json:"price"`
	Title      string            `json:"title"`
}

// MapView is what the map renders for the current listing set.
type MapView struct {
	Clustering bool           `json:"clustering"`
	Clusters   []geo.Cluster  `json:"clusters,omitempty"`
	Markers    []Marker       `json:"markers,omitempty"`
	Region     *models.Region `json:"region,omitempty"`
}

// FitToMarkers returns the region covering every listing with a usable
// position, padded by 10% per axis. Nil when there is none.
func FitToMarkers(listings []models.Listing) *models.Region {
	return geo.FitRegion(geo.Coordinates(listings))
}

// ClusteringActive reports whether count markers should be clustered.
func ClusteringActive(enabled bool, count, threshold int) bool {
	return enabled && count > threshold
}

// AreAllVisible reports whether every usable listing position lies inside
// bounds. Listings without a position are ignored.
func AreAllVisible(listings []models.Listing, bounds models.MapBounds) bool {
	for i := range listings {
		p, ok := listings[i].Coordinate()
		if !ok {
			continue
		}
		if !geo.WithinBounds(p, bounds) {
			return false
		}
	}
	return true
}

// ClusterZoomFor is the factor a cluster press divides the region by.
func ClusterZoomFor(pointCount int) float64 {
	return geo.ClusterZoomDivisor(pointCount)
}

// ClusterPressRegion is the region to animate to when a cluster of
// pointCount markers centered at center is pressed.
func ClusterPressRegion(current models.Region, center models.Coordinate, pointCount int) models.Region {
	return geo.ZoomRegion(center, current, pointCount)
}

// Markers converts listings with a usable position to pins.
func Markers(listings []models.Listing) []Marker {
	out := make([]Marker, 0, len(listings))
	for i := range listings {
		l := &listings[i]
		p, ok := l.Coordinate()
		if !ok {
			continue
		}
		out = append(out, Marker{ID: l.ID, Coordinate: p, Price: l.Price, Title: l.Title})
	}
	return out
}

// BuildMapView clusters listings when there are more than threshold
// markers, using cells sized for the visible longitude span.
func BuildMapView(listings []models.Listing, lngDelta float64, enabled bool, threshold int) MapView {
	markers := Markers(listings)
	view := MapView{Region: FitToMarkers(listings)}
	if !ClusteringActive(enabled, len(markers), threshold) {
		view.Markers = markers
		return view
	}

	if lngDelta <= 0 && view.Region != nil {
		lngDelta = view.Region.LongitudeDelta
	}
	view.Clustering = true
	view.Clusters = geo.ClusterListings(listings, geo.PrecisionForDelta(lngDelta))
	return view
}
