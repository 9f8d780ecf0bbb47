package layout

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Defaults applied when a document omits its mission context fields.
const (
	DefaultCrewSize            = 4
	DefaultStructuralMaterial  = "Inflatable"
	DefaultRadiationResistance = 7.0
	DefaultPermanence          = 1
	DefaultDocumentID          = "N/A"
)

//go:embed document.schema.json
var documentSchemaJSON string

var (
	schemaOnce sync.Once
	docSchema  *gojsonschema.Schema
	schemaErr  error
)

func documentSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		docSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(documentSchemaJSON))
	})
	return docSchema, schemaErr
}

// Document pairs a layout with the mission it is evaluated for. It is the unit
// exchanged over HTTP, the event bus and batch files.
type Document struct {
	Layout  Layout
	Context MissionContext
}

type documentWire struct {
	Layout  layoutWire   `json:"layout"`
	Context *contextWire `json:"context,omitempty"`
}

type layoutWire struct {
	ID    string     `json:"id,omitempty"`
	Cells []cellWire `json:"cells"`
}

type cellWire struct {
	X     int       `json:"x"`
	Y     int       `json:"y"`
	Type  string    `json:"type"`
	Props propsWire `json:"props"`
}

type propsWire struct {
	Mass                *float64 `json:"mass"`
	Volume              *float64 `json:"volume,omitempty"`
	Cost                *float64 `json:"cost,omitempty"`
	Cleanliness         *float64 `json:"cleanliness"`
	Permanence          *int     `json:"permanence,omitempty"`
	MaterialType        string   `json:"material_type,omitempty"`
	RadiationResistance *float64 `json:"radiation_resistance,omitempty"`
}

type contextWire struct {
	CrewSize            *int     `json:"crew_size,omitempty"`
	StructuralMaterial  *string  `json:"structural_material,omitempty"`
	RadiationResistance *float64 `json:"radiation_resistance,omitempty"`
}

// DecodeDocument validates raw JSON against the document schema and converts it.
// A missing layout id becomes DefaultDocumentID.
func DecodeDocument(data []byte) (*Document, error) {
	doc, err := decode(data)
	if err != nil {
		return nil, err
	}
	if doc.Layout.ID == "" {
		doc.Layout.ID = DefaultDocumentID
	}
	return doc, nil
}

// DecodeDocuments decodes a JSON array of documents. Layouts without an id are
// named habitat_<n> after their 1-based position.
func DecodeDocuments(data []byte) ([]Document, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode document list: %w", err)
	}
	docs := make([]Document, 0, len(raw))
	for i, r := range raw {
		doc, err := decode(r)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if doc.Layout.ID == "" {
			doc.Layout.ID = fmt.Sprintf("habitat_%d", i+1)
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

func decode(data []byte) (*Document, error) {
	schema, err := documentSchema()
	if err != nil {
		return nil, fmt.Errorf("load document schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, &ValidationError{Problems: problems}
	}

	var w documentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return w.toDocument()
}

func (w documentWire) toDocument() (*Document, error) {
	doc := &Document{
		Layout: Layout{ID: w.Layout.ID, Cells: make([]Cell, 0, len(w.Layout.Cells))},
		Context: MissionContext{
			CrewSize:            DefaultCrewSize,
			StructuralMaterial:  DefaultStructuralMaterial,
			RadiationResistance: DefaultRadiationResistance,
		},
	}

	var problems []string
	for i, cw := range w.Layout.Cells {
		if cw.Props.Mass == nil {
			problems = append(problems, fmt.Sprintf("cell %d (%s): mass is required", i, cw.Type))
			continue
		}
		if cw.Props.Cleanliness == nil {
			problems = append(problems, fmt.Sprintf("cell %d (%s): cleanliness is required", i, cw.Type))
			continue
		}
		t, _ := ParseModuleType(cw.Type)
		cell := Cell{
			X:       cw.X,
			Y:       cw.Y,
			Type:    t,
			RawType: cw.Type,
			Props: Props{
				Mass:         *cw.Props.Mass,
				Cleanliness:  *cw.Props.Cleanliness,
				Permanence:   DefaultPermanence,
				MaterialType: cw.Props.MaterialType,
			},
		}
		if cw.Props.Volume != nil {
			cell.Props.Volume = *cw.Props.Volume
		}
		if cw.Props.Cost != nil {
			cell.Props.Cost = *cw.Props.Cost
		}
		if cw.Props.Permanence != nil {
			cell.Props.Permanence = *cw.Props.Permanence
		}
		if cw.Props.RadiationResistance != nil {
			cell.Props.RadiationResistance = *cw.Props.RadiationResistance
		}
		doc.Layout.Cells = append(doc.Layout.Cells, cell)
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	if c := w.Context; c != nil {
		if c.CrewSize != nil {
			doc.Context.CrewSize = *c.CrewSize
		}
		if c.StructuralMaterial != nil {
			doc.Context.StructuralMaterial = *c.StructuralMaterial
		}
		if c.RadiationResistance != nil {
			doc.Context.RadiationResistance = *c.RadiationResistance
		}
	}
	return doc, nil
}

// MarshalJSON encodes the document in the same wire form DecodeDocument reads.
func (d Document) MarshalJSON() ([]byte, error) {
	w := documentWire{
		Layout: layoutWire{ID: d.Layout.ID, Cells: make([]cellWire, 0, len(d.Layout.Cells))},
		Context: &contextWire{
			CrewSize:            &d.Context.CrewSize,
			StructuralMaterial:  &d.Context.StructuralMaterial,
			RadiationResistance: &d.Context.RadiationResistance,
		},
	}
	for _, c := range d.Layout.Cells {
		p := c.Props
		w.Layout.Cells = append(w.Layout.Cells, cellWire{
			X:    c.X,
			Y:    c.Y,
			Type: c.TypeName(),
			Props: propsWire{
				Mass:                &p.Mass,
				Volume:              &p.Volume,
				Cost:                &p.Cost,
				Cleanliness:         &p.Cleanliness,
				Permanence:          &p.Permanence,
				MaterialType:        p.MaterialType,
				RadiationResistance: &p.RadiationResistance,
			},
		})
	}
	return json.Marshal(w)
}

// UnmarshalJSON runs the same schema validation as DecodeDocument.
func (d *Document) UnmarshalJSON(data []byte) error {
	doc, err := DecodeDocument(data)
	if err != nil {
		return err
	}
	*d = *doc
	return nil
}
