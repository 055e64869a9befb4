package room

import "math/rand"

// descriptions are the short flavor lines shown next to each player. The
// engine hands out an index nobody in the room currently uses, falling back
// to any index once the room outgrows the list.
var descriptions = []string{
	"Master of the back alleys",
	"Never skips a street sign",
	"Compass always points home",
	"Reads sun shadows like a book",
	"Knows every roundabout by heart",
	"Fluent in road markings",
	"Collects capital cities",
	"Once guessed a country from a bush",
	"Navigates by power lines",
	"Can smell the hemisphere",
	"License plate whisperer",
	"Counts kilometers in their sleep",
	"Friend of every gas station",
	"Maps are their love language",
	"Spots a Baltic gutter instantly",
	"Walks the equator on weekends",
}

// randomDescriptionIndex picks an index outside used when any remain.
func randomDescriptionIndex(used map[int]bool) int {
	free := make([]int, 0, len(descriptions))
	for i := range descriptions {
		if !used[i] {
			free = append(free, i)
		}
	}
	if len(free) == 0 {
		return rand.Intn(len(descriptions))
	}
	return free[rand.Intn(len(free))]
}

// Description returns the flavor line for an index.
func Description(index int) string {
	if index < 0 || index >= len(descriptions) {
		return descriptions[0]
	}
	return descriptions[index]
}
