package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/stateres/internal/ir"
)

// LoadPDUs reads a list of PDUs from a .json, .yaml or .yml file.
// PDUs without event_id are assigned their reference hash.
func LoadPDUs(path string) ([]*ir.PDU, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var pdus []*ir.PDU
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &pdus)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &pdus)
	default:
		return nil, fmt.Errorf("%s: unsupported extension %q (want .json, .yaml or .yml)", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for i, p := range pdus {
		if p == nil {
			return nil, fmt.Errorf("%s: event %d is empty", path, i)
		}
		if p.Room == "" || p.SenderID == "" || p.Kind == "" {
			return nil, fmt.Errorf("%s: event %d: room_id, sender and type are required", path, i)
		}
		if p.ID == "" {
			id, err := ir.ReferenceHash(p)
			if err != nil {
				return nil, fmt.Errorf("%s: event %d: %w", path, i, err)
			}
			p.ID = id
		}
	}
	return pdus, nil
}
