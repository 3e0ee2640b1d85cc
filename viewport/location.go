package viewport

import (
	"context"

	"rentscout/models"
)

// LocationService supplies the user position used as the distance origin.
type LocationService interface {
	CurrentCoordinate(ctx context.Context) *models.Coordinate
}

// StaticLocation always reports the same coordinate, or none.
type StaticLocation struct {
	coord *models.Coordinate
}

func NewStaticLocation(c *models.Coordinate) *StaticLocation {
	if c != nil && !c.Valid() {
		c = nil
	}
	return &StaticLocation{coord: c}
}

func (s *StaticLocation) CurrentCoordinate(ctx context.Context) *models.Coordinate {
	if s.coord == nil {
		return nil
	}
	c := *s.coord
	return &c
}
