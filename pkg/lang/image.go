package lang

import (
	"bytes"
	"encoding/gob"
)

func init() {
	gob.Register(&Node{})
}

// Image is a compiled contract: the rewritten, lint-clean AST plus the
// module name it was compiled under (needed by the loader to rebuild a
// per-call ctx).
type Image struct {
	Module        string
	Tree          *Node
	Exported      []string // publicly callable function names, post-mangling
	ConstructName string   // mangled constructor name, "" if none
}

// Marshal serializes an Image to the bytes stored under a contract's
// __compiled__ metadata field.
func (img *Image) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalImage parses bytes previously produced by Image.Marshal.
func UnmarshalImage(b []byte) (*Image, error) {
	var img Image
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&img); err != nil {
		return nil, err
	}
	return &img, nil
}
