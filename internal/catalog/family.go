// Package catalog holds the static maintenance rule tables, one provider per
// manufacturer family plus a generic base provider.
package catalog

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Family identifies a manufacturer family. Makes that share a maintenance
// program (toyota/lexus, bmw/mini) route to the same family.
type Family string

const (
	FamilyBase     Family = "base"
	FamilyToyota   Family = "toyota"
	FamilyHonda    Family = "honda"
	FamilyFord     Family = "ford"
	FamilyGM       Family = "gm"
	FamilyBMW      Family = "bmw"
	FamilyMercedes Family = "mercedes"
	FamilyVWGroup  Family = "vwgroup"
	FamilyNissan   Family = "nissan"
	FamilyMazda    Family = "mazda"
	FamilySubaru   Family = "subaru"
)

// makeFamilies maps a lowercased make to its family.
var makeFamilies = map[string]Family{
	"toyota":        FamilyToyota,
	"lexus":         FamilyToyota,
	"honda":         FamilyHonda,
	"acura":         FamilyHonda,
	"ford":          FamilyFord,
	"chevrolet":     FamilyGM,
	"chevy":         FamilyGM,
	"gmc":           FamilyGM,
	"buick":         FamilyGM,
	"cadillac":      FamilyGM,
	"bmw":           FamilyBMW,
	"mini":          FamilyBMW,
	"mercedes-benz": FamilyMercedes,
	"mercedes":      FamilyMercedes,
	"mercedes benz": FamilyMercedes,
	"volkswagen":    FamilyVWGroup,
	"vw":            FamilyVWGroup,
	"audi":          FamilyVWGroup,
	"porsche":       FamilyVWGroup,
	"nissan":        FamilyNissan,
	"infiniti":      FamilyNissan,
	"mazda":         FamilyMazda,
	"subaru":        FamilySubaru,
}

// FamilyForMake routes a make to its manufacturer family. Unknown makes
// return false.
func FamilyForMake(make string) (Family, bool) {
	f, ok := makeFamilies[strings.ToLower(strings.TrimSpace(make))]
	return f, ok
}

// Families returns every manufacturer family in a fixed order. The base
// family is not included.
func Families() []Family {
	return []Family{
		FamilyToyota,
		FamilyHonda,
		FamilyFord,
		FamilyGM,
		FamilyBMW,
		FamilyMercedes,
		FamilyVWGroup,
		FamilyNissan,
		FamilyMazda,
		FamilySubaru,
	}
}

// ParseFamily converts a string into a Family.
func ParseFamily(s string) (Family, error) {
	f := Family(strings.ToLower(strings.TrimSpace(s)))
	if f == FamilyBase {
		return f, nil
	}
	for _, known := range Families() {
		if f == known {
			return f, nil
		}
	}
	return "", eris.Errorf("unknown family: %q", s)
}

// String returns the family identifier.
func (f Family) String() string {
	return string(f)
}
