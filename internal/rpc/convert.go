package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GriffinCanCode/glyphscan/internal/recognize"
)

// ToStruct converts a report to its wire form.
func ToStruct(rep recognize.Report) (*structpb.Struct, error) {
	raw, err := json.Marshal(rep)
	if err != nil {
		return nil, fmt.Errorf("rpc: encode report: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("rpc: encode report: %w", err)
	}
	return structpb.NewStruct(fields)
}

// FromStruct is the inverse of ToStruct.
func FromStruct(s *structpb.Struct) (recognize.Report, error) {
	var rep recognize.Report
	raw, err := protojson.Marshal(s)
	if err != nil {
		return rep, fmt.Errorf("rpc: decode report: %w", err)
	}
	if err := json.Unmarshal(raw, &rep); err != nil {
		return rep, fmt.Errorf("rpc: decode report: %w", err)
	}
	return rep, nil
}
