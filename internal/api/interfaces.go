package api

import (
	"context"

	"github.com/neexbeast/starwatch/internal/location"
)

// Advisor defines the advisory operations needed by handlers.
type Advisor interface {
	WeeklyAdvisory(ctx context.Context, name string) string
	ImpromptuAdvisory(ctx context.Context, id, name string) string
	RefreshWeeklyData(ctx context.Context) error
}

// Catalog defines the location lookups needed by handlers.
type Catalog interface {
	All() []location.Location
	Lookup(id string) (location.Location, bool)
	Regions() []location.Region
	Region(name string) (location.Region, bool)
}

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
