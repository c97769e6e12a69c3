package mockdata

import (
	"errors"
	"strings"

	"github.com/kjstillabower/air-quality-service/internal/models"
)

// ErrStationNotFound is returned when a station id is not in the catalog.
var ErrStationNotFound = errors.New("station not found")

// DefaultRegion is used when a request names no region.
const DefaultRegion = "Delhi NCR"

// DefaultStations is the built-in station catalog.
func DefaultStations() []models.Station {
	return []models.Station{
		{
			StationID: "ST-DEL-001",
			Name:      "Delhi - ITO",
			Lat:       28.6353,
			Lon:       77.22496,
			Region:    DefaultRegion,
			Tags:      []string{"urban"},
			Sensors: []models.Sensor{
				{Pollutant: "PM2.5", Unit: "ug/m3", SensorID: "S1"},
				{Pollutant: "NO2", Unit: "ppb", SensorID: "S2"},
			},
		},
		{
			StationID: "ST-DEL-002",
			Name:      "Gurgaon - Sector 14",
			Lat:       28.4674,
			Lon:       77.0266,
			Region:    DefaultRegion,
			Tags:      []string{"suburban"},
			Sensors: []models.Sensor{
				{Pollutant: "PM2.5", Unit: "ug/m3", SensorID: "S3"},
			},
		},
	}
}

// Catalog is an immutable, ordered set of stations.
type Catalog struct {
	stations []models.Station
	byID     map[string]int
}

// NewCatalog builds a catalog. Later duplicates of a station id are dropped.
func NewCatalog(stations []models.Station) *Catalog {
	c := &Catalog{byID: make(map[string]int, len(stations))}
	for _, s := range stations {
		if _, dup := c.byID[s.StationID]; dup {
			continue
		}
		c.byID[s.StationID] = len(c.stations)
		c.stations = append(c.stations, s)
	}
	return c
}

// Len returns the number of stations.
func (c *Catalog) Len() int {
	return len(c.stations)
}

// List returns stations in region (all when region is empty), paged by offset and limit.
func (c *Catalog) List(region string, limit, offset int) []models.Station {
	out := make([]models.Station, 0, len(c.stations))
	for _, s := range c.stations {
		if region != "" && !strings.EqualFold(s.Region, region) {
			continue
		}
		out = append(out, s)
	}
	if offset >= len(out) {
		return []models.Station{}
	}
	out = out[offset:]
	if limit >= 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// Get returns the station with the given id.
func (c *Catalog) Get(id string) (models.Station, error) {
	i, ok := c.byID[id]
	if !ok {
		return models.Station{}, ErrStationNotFound
	}
	return c.stations[i], nil
}

// Default returns the first station in the catalog.
func (c *Catalog) Default() (models.Station, error) {
	if len(c.stations) == 0 {
		return models.Station{}, ErrStationNotFound
	}
	return c.stations[0], nil
}

// Resolve returns the named station, or the default station when id is empty.
func (c *Catalog) Resolve(id string) (models.Station, error) {
	if id == "" {
		return c.Default()
	}
	return c.Get(id)
}

// InRegion reports whether the station id belongs to region.
func (c *Catalog) InRegion(id, region string) bool {
	s, err := c.Get(id)
	return err == nil && strings.EqualFold(s.Region, region)
}

// Regions returns the distinct regions in catalog order.
func (c *Catalog) Regions() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range c.stations {
		if _, ok := seen[s.Region]; ok {
			continue
		}
		seen[s.Region] = struct{}{}
		out = append(out, s.Region)
	}
	return out
}

// All returns a copy of every station.
func (c *Catalog) All() []models.Station {
	return append([]models.Station(nil), c.stations...)
}
