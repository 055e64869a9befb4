package geo

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
)

// Locations is the immutable catalog of round targets, loaded once at
// startup. Sampling is safe for concurrent use.
type Locations struct {
	coords []LatLng
}

// LoadLocations reads a newline-delimited JSON file of {"lat":..,"lng":..}
// objects. Blank lines are skipped; a malformed line fails the load.
func LoadLocations(path string) (*Locations, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open locations file: %w", err)
	}
	defer f.Close()

	var coords []LatLng
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var coord LatLng
		if err := json.Unmarshal(raw, &coord); err != nil {
			return nil, fmt.Errorf("locations file line %d: %w", line, err)
		}
		coords = append(coords, coord)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read locations file: %w", err)
	}
	if len(coords) == 0 {
		return nil, fmt.Errorf("locations file %q contains no locations", path)
	}
	return &Locations{coords: coords}, nil
}

// NewLocations wraps an in-memory catalog, mainly for tests.
func NewLocations(coords []LatLng) *Locations {
	return &Locations{coords: coords}
}

// Random returns a uniformly sampled location.
func (l *Locations) Random() LatLng {
	return l.coords[rand.Intn(len(l.coords))]
}

// Len returns the catalog size.
func (l *Locations) Len() int {
	return len(l.coords)
}
