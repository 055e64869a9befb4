package room

import "github.com/rivo/uniseg"

// graphemeLen counts user-perceived characters, so emoji and combining
// marks count once each.
func graphemeLen(s string) int {
	return uniseg.GraphemeClusterCount(s)
}
