package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"chainflow-backend/internal/service/decoder"
	"chainflow-backend/internal/types"

	"github.com/spf13/cobra"
)

type definitionOutput struct {
	Pallet         string                   `json:"pallet"`
	Name           string                   `json:"name"`
	Kind           types.EventKind          `json:"kind"`
	Index          int                      `json:"index"`
	Description    string                   `json:"description,omitempty"`
	Fields         []*types.FieldDescriptor `json:"fields"`
	ExamplePayload map[string]interface{}   `json:"example_payload"`
}

type decodeOutput struct {
	SpecVersion int                `json:"spec_version"`
	Definitions []definitionOutput `json:"definitions"`
	Errors      []string           `json:"errors,omitempty"`
}

func runDecode(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("registry")
	pallet, _ := cmd.Flags().GetString("pallet")
	kind, _ := cmd.Flags().GetString("kind")

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer f.Close()

	out, err := decodeMetadata(f, pallet, kind)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// decodeMetadata 解析元数据并按 pallet 与种类过滤
func decodeMetadata(r io.Reader, pallet, kind string) (*decodeOutput, error) {
	switch kind {
	case "all", string(types.EventKindEvent), string(types.EventKindError):
	default:
		return nil, fmt.Errorf("unsupported kind %q", kind)
	}

	var meta types.ChainMetadata
	if err := json.NewDecoder(r).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}

	defs, parseErrs := decoder.ParseEvents(types.NewTypeRegistry(meta.Types), meta.Pallets)

	out := &decodeOutput{SpecVersion: meta.SpecVersion, Definitions: []definitionOutput{}}
	for _, def := range defs {
		if pallet != "" && !strings.EqualFold(def.Pallet, pallet) {
			continue
		}
		if kind != "all" && string(def.Kind) != kind {
			continue
		}
		fields := def.Fields()
		out.Definitions = append(out.Definitions, definitionOutput{
			Pallet:         def.Pallet,
			Name:           def.Name,
			Kind:           def.Kind,
			Index:          def.Index,
			Description:    def.Description,
			Fields:         fields,
			ExamplePayload: decoder.ExamplePayload(fields),
		})
	}
	for _, pe := range parseErrs {
		out.Errors = append(out.Errors, pe.Error())
	}
	return out, nil
}
