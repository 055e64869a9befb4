package geo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance_Zero(t *testing.T) {
	p := LatLng{Lat: 48.8566, Lng: 2.3522}
	assert.Zero(t, Distance(p, p))
}

func TestDistance_KnownPairs(t *testing.T) {
	paris := LatLng{Lat: 48.8566, Lng: 2.3522}
	london := LatLng{Lat: 51.5074, Lng: -0.1278}
	sydney := LatLng{Lat: -33.8688, Lng: 151.2093}

	// Reference distances computed with R = 6371 km.
	assert.InDelta(t, 343_556, Distance(paris, london), 2_000)
	assert.InDelta(t, 16_960_000, Distance(paris, sydney), 50_000)

	// Symmetry.
	assert.InDelta(t, Distance(paris, london), Distance(london, paris), 1e-6)
}

func TestScore(t *testing.T) {
	target := LatLng{Lat: 48.8566, Lng: 2.3522}

	assert.Equal(t, uint64(5000), Score(target, target))

	// Scores decay monotonically with distance.
	near := LatLng{Lat: 48.9, Lng: 2.4}
	far := LatLng{Lat: 40.7128, Lng: -74.0060}
	nearScore := Score(near, target)
	farScore := Score(far, target)
	assert.Greater(t, nearScore, farScore)
	assert.LessOrEqual(t, nearScore, uint64(5000))

	// Antipodal-scale distances score essentially nothing.
	sydney := LatLng{Lat: -33.8688, Lng: 151.2093}
	assert.Less(t, Score(sydney, target), uint64(10))
}

func writeLocationsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "locations.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadLocations(t *testing.T) {
	path := writeLocationsFile(t, `{"lat":48.8566,"lng":2.3522}
{"lat":51.5074,"lng":-0.1278}

{"lat":-33.8688,"lng":151.2093}
`)

	locations, err := LoadLocations(path)
	require.NoError(t, err)
	assert.Equal(t, 3, locations.Len())

	sample := locations.Random()
	assert.NotZero(t, sample.Lat)
}

func TestLoadLocations_Malformed(t *testing.T) {
	path := writeLocationsFile(t, `{"lat":48.8566,"lng":2.3522}
not json
`)

	_, err := LoadLocations(path)
	assert.ErrorContains(t, err, "line 2")
}

func TestLoadLocations_Empty(t *testing.T) {
	path := writeLocationsFile(t, "")

	_, err := LoadLocations(path)
	assert.ErrorContains(t, err, "no locations")
}

func TestLoadLocations_MissingFile(t *testing.T) {
	_, err := LoadLocations(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
