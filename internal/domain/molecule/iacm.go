package molecule

import (
	"fmt"
	"strings"
)

// AssignIACMTypes derives an IACM atom type for every atom of g from its
// element and bonding pattern, overwriting any existing type.
//
// Carbon is typed by attached hydrogens (C, CH1..CH4), hydrogen by its
// partner (HC on carbon, H otherwise), oxygen as OA (hydroxyl/acid with H),
// O (terminal) or OE (ether/ester), nitrogen as NL (four bonds), NT (two or
// more hydrogens) or N.  Halogens, S, P and Si map to their element.
func AssignIACMTypes(g *Graph) {
	for _, a := range g.atoms {
		a.IACMType = iacmType(g, a)
	}
}

func iacmType(g *Graph, a *Atom) string {
	hydrogens := 0
	for _, n := range g.adj[a.ID] {
		if nb, ok := g.Atom(n); ok && nb.Element == "H" {
			hydrogens++
		}
	}
	degree := g.Degree(a.ID)

	switch a.Element {
	case "C":
		if hydrogens == 0 {
			return "C"
		}
		if hydrogens > 4 {
			hydrogens = 4
		}
		return fmt.Sprintf("CH%d", hydrogens)
	case "H":
		for _, n := range g.adj[a.ID] {
			if nb, ok := g.Atom(n); ok && nb.Element == "C" {
				return "HC"
			}
		}
		return "H"
	case "O":
		switch {
		case hydrogens > 0:
			return "OA"
		case degree <= 1:
			return "O"
		default:
			return "OE"
		}
	case "N":
		switch {
		case degree >= 4:
			return "NL"
		case hydrogens >= 2:
			return "NT"
		default:
			return "N"
		}
	case "F":
		return "F"
	case "Cl":
		return "CL"
	case "Br":
		return "BR"
	case "I":
		return "I"
	case "S":
		return "S"
	case "P":
		return "P"
	case "Si":
		return "SI"
	}
	return strings.ToUpper(a.Element)
}

//Personal.AI order the ending
