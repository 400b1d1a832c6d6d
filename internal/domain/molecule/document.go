package molecule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/ChargeMatch/pkg/errors"
	ctypes "github.com/turtacn/ChargeMatch/pkg/types/charge"
)

// Format names a document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatForPath picks the encoding from a file extension, defaulting to YAML.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatYAML, "yml":
		return FormatYAML, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", errors.InvalidParam("unknown document format").WithDetail("format=" + s)
}

// ReadDocument decodes a molecule document.  Input whose first non-blank
// byte is '{' is read as JSON, anything else as YAML.
func ReadDocument(r io.Reader) (*ctypes.MoleculeDocument, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMoleculeInvalidFormat, "failed to read molecule document")
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New(errors.ErrCodeMoleculeInvalidFormat, "empty molecule document")
	}

	var doc ctypes.MoleculeDocument
	if trimmed[0] == '{' {
		err = json.Unmarshal(trimmed, &doc)
	} else {
		err = yaml.Unmarshal(trimmed, &doc)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMoleculeInvalidFormat, "failed to decode molecule document")
	}
	return &doc, nil
}

// WriteDocument encodes doc in the requested format.
func WriteDocument(w io.Writer, doc *ctypes.MoleculeDocument, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode molecule document")
		}
		return nil
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode molecule document")
		}
		return enc.Close()
	}
}

// FromDocument builds a Graph from doc, validating atoms, bonds and charge
// groups.  Result fields in the document are ignored.
func FromDocument(doc *ctypes.MoleculeDocument) (*Graph, error) {
	if doc == nil {
		return nil, errors.New(errors.ErrCodeMoleculeInvalidFormat, "molecule document is nil")
	}
	g := NewGraph()
	for _, ad := range doc.Atoms {
		a := &Atom{
			ID:       AtomID(ad.ID),
			Label:    ad.Label,
			Element:  ad.Element,
			IACMType: strings.TrimSpace(ad.IACM),
		}
		if ad.ChargeGroup != nil {
			grp := *ad.ChargeGroup
			a.ChargeGroup = &grp
		}
		if ad.Charge != nil {
			q := *ad.Charge
			a.Charge = &q
		}
		if err := g.AddAtom(a); err != nil {
			return nil, err
		}
	}
	for _, b := range doc.Bonds {
		if err := g.AddBond(AtomID(b.From), AtomID(b.To)); err != nil {
			return nil, err
		}
	}
	for grp, q := range doc.GroupCharges {
		g.GroupCharges[grp] = q
	}
	if g.HasChargeGroups() {
		for _, a := range g.atoms {
			if a.ChargeGroup == nil {
				continue
			}
			if _, ok := g.GroupCharges[*a.ChargeGroup]; !ok {
				return nil, errors.New(errors.ErrCodeMoleculeInvalidFormat, "atom references undeclared charge group").
					WithDetail(fmt.Sprintf("atom=%d group=%d", a.ID, *a.ChargeGroup))
			}
		}
	}
	return g, nil
}

// ToDocument renders g, including charge results once the graph is solved.
func ToDocument(g *Graph) *ctypes.MoleculeDocument {
	doc := &ctypes.MoleculeDocument{
		Atoms: make([]ctypes.AtomDocument, 0, len(g.atoms)),
		Bonds: make([]ctypes.BondDocument, 0),
	}
	solved := g.state >= StateSolved
	redistributed := g.state >= StateRedistributed
	for _, a := range g.atoms {
		ad := ctypes.AtomDocument{
			ID:          int(a.ID),
			Label:       a.Label,
			Element:     a.Element,
			IACM:        a.IACMType,
			ChargeGroup: a.ChargeGroup,
			Charge:      a.Charge,
		}
		if solved {
			ad.Score = floatPtr(a.Score)
			ad.PartialCharge = floatPtr(a.PartialCharge)
		}
		if redistributed {
			ad.PartialChargeRedist = floatPtr(a.PartialChargeRedist)
		}
		doc.Atoms = append(doc.Atoms, ad)
	}
	for _, b := range g.Bonds() {
		doc.Bonds = append(doc.Bonds, ctypes.BondDocument{From: int(b[0]), To: int(b[1])})
	}
	if len(g.GroupCharges) > 0 {
		doc.GroupCharges = make(map[int]float64, len(g.GroupCharges))
		for k, v := range g.GroupCharges {
			doc.GroupCharges[k] = v
		}
	}
	if solved {
		doc.TotalCharge = floatPtr(g.TotalCharge)
		doc.Score = floatPtr(g.Score)
	}
	if redistributed {
		doc.TotalChargeRedist = floatPtr(g.TotalChargeRedist)
	}
	return doc
}

func floatPtr(f float64) *float64 { return &f }

//Personal.AI order the ending
