package card

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes a Rect as the [x,y,w,h] array spec.md's artifact JSON
// uses for every bbox field, rather than a {"x":...} object.
func (r Rect) MarshalJSON() ([]byte, error) { return json.Marshal(r.Box()) }

func (r *Rect) UnmarshalJSON(data []byte) error {
	var box [4]int
	if err := json.Unmarshal(data, &box); err != nil {
		return fmt.Errorf("Rect: %w", err)
	}
	r.X, r.Y, r.W, r.H = box[0], box[1], box[2], box[3]
	return nil
}

// parseEnum is a small helper shared by every enum's UnmarshalJSON: decode a
// JSON string and look it up in a name table.
func parseEnum(data []byte, names map[string]int, kind string) (int, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return 0, fmt.Errorf("%s: %w", kind, err)
	}
	v, ok := names[s]
	if !ok {
		return 0, fmt.Errorf("%s: unknown value %q", kind, s)
	}
	return v, nil
}

var blockTypeNames = map[string]int{
	"header": int(BlockHeader), "body": int(BlockBody), "table": int(BlockTable),
	"footer": int(BlockFooter), "handwriting": int(BlockHandwriting),
}

func (t BlockType) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }
func (t *BlockType) UnmarshalJSON(data []byte) error {
	v, err := parseEnum(data, blockTypeNames, "BlockType")
	if err != nil {
		return err
	}
	*t = BlockType(v)
	return nil
}

var blockSourceNames = map[string]int{
	"primary": int(SourcePrimary), "fallback": int(SourceFallback), "degenerate": int(SourceDegenerate),
}

func (s BlockSource) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }
func (s *BlockSource) UnmarshalJSON(data []byte) error {
	v, err := parseEnum(data, blockSourceNames, "BlockSource")
	if err != nil {
		return err
	}
	*s = BlockSource(v)
	return nil
}

var ocrMethodNames = map[string]int{
	"primary": int(OcrPrimary), "secondary": int(OcrSecondary), "degenerate": int(OcrDegenerate),
}

func (m OcrMethod) MarshalJSON() ([]byte, error) { return json.Marshal(m.String()) }
func (m *OcrMethod) UnmarshalJSON(data []byte) error {
	v, err := parseEnum(data, ocrMethodNames, "OcrMethod")
	if err != nil {
		return err
	}
	*m = OcrMethod(v)
	return nil
}

var preprocPathNames = map[string]int{"minimal": int(PathMinimal), "enhanced": int(PathEnhanced)}

func (p PreprocPath) MarshalJSON() ([]byte, error) { return json.Marshal(p.String()) }
func (p *PreprocPath) UnmarshalJSON(data []byte) error {
	v, err := parseEnum(data, preprocPathNames, "PreprocPath")
	if err != nil {
		return err
	}
	*p = PreprocPath(v)
	return nil
}

var provenanceNames = map[string]int{"geometric": int(ProvenanceGeometric), "semantic": int(ProvenanceSemantic)}

func (p Provenance) MarshalJSON() ([]byte, error) { return json.Marshal(p.String()) }
func (p *Provenance) UnmarshalJSON(data []byte) error {
	v, err := parseEnum(data, provenanceNames, "Provenance")
	if err != nil {
		return err
	}
	*p = Provenance(v)
	return nil
}

var statusNames = map[string]int{
	"ok": int(StatusOK), "partial": int(StatusPartial),
	"needs_review": int(StatusNeedsReview), "error": int(StatusError),
}

func (s Status) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }
func (s *Status) UnmarshalJSON(data []byte) error {
	v, err := parseEnum(data, statusNames, "Status")
	if err != nil {
		return err
	}
	*s = Status(v)
	return nil
}
