package testutil

import (
	"fmt"

	ctypes "github.com/turtacn/ChargeMatch/pkg/types/charge"
)

// Reference charges carried by MethaneDocument(true).
const (
	MethaneCarbonCharge   = -0.48
	MethaneHydrogenCharge = 0.118
)

// MethaneDocument returns CH4 with atom 1 the carbon and atoms 2-5 the
// hydrogens.  Hydrogens carry the HC IACM type.  With charged set every atom
// carries its reference charge, which makes the document usable as
// repository input.
func MethaneDocument(charged bool) *ctypes.MoleculeDocument {
	doc := &ctypes.MoleculeDocument{Name: "methane"}
	carbon := ctypes.AtomDocument{ID: 1, Label: "C1", Element: "C"}
	if charged {
		carbon.Charge = float64Ptr(MethaneCarbonCharge)
	}
	doc.Atoms = append(doc.Atoms, carbon)
	for i := 2; i <= 5; i++ {
		h := ctypes.AtomDocument{ID: i, Label: fmt.Sprintf("H%d", i-1), Element: "H", IACM: "HC"}
		if charged {
			h.Charge = float64Ptr(MethaneHydrogenCharge)
		}
		doc.Atoms = append(doc.Atoms, h)
		doc.Bonds = append(doc.Bonds, ctypes.BondDocument{From: 1, To: i})
	}
	return doc
}

// EthanolDocument returns C2H5OH without types or charges:
// C1(1) C2(2) O(3), hydrogens 4-6 on C1, 7-8 on C2 and 9 on O.
func EthanolDocument() *ctypes.MoleculeDocument {
	doc := &ctypes.MoleculeDocument{Name: "ethanol"}
	elements := []string{"C", "C", "O", "H", "H", "H", "H", "H", "H"}
	for i, e := range elements {
		doc.Atoms = append(doc.Atoms, ctypes.AtomDocument{ID: i + 1, Element: e})
	}
	for _, b := range [][2]int{{1, 2}, {2, 3}, {1, 4}, {1, 5}, {1, 6}, {2, 7}, {2, 8}, {3, 9}} {
		doc.Bonds = append(doc.Bonds, ctypes.BondDocument{From: b[0], To: b[1]})
	}
	return doc
}

// ChargeRequest wraps doc in a request for variant with total charge 0.
func ChargeRequest(doc *ctypes.MoleculeDocument, variant ctypes.Variant) *ctypes.ChargeRequest {
	return &ctypes.ChargeRequest{Molecule: *doc, Variant: variant}
}

func float64Ptr(f float64) *float64 { return &f }

//Personal.AI order the ending
