package harness

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DecodeRequest reads one JSON request from r and validates it.
func DecodeRequest(r io.Reader) (*Request, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading request: %w", err)
	}
	return decodeRequest(data, false)
}

// DecodeRequestFile reads a request from a file. Files with a .yaml or .yml
// extension are parsed as YAML, everything else as JSON.
func DecodeRequestFile(path string) (*Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading request file: %w", err)
	}
	ext := filepath.Ext(path)
	return decodeRequest(data, ext == ".yaml" || ext == ".yml")
}

func decodeRequest(data []byte, isYAML bool) (*Request, error) {
	var req Request
	if isYAML {
		if err := yaml.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("parsing request: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("parsing request: %w", err)
		}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// Validate checks the required request fields. An empty examples list is
// valid; an absent one is not.
func (r *Request) Validate() error {
	if r.ProgramCode == "" {
		return fmt.Errorf("request is missing required field 'programCode'")
	}
	if r.Examples == nil {
		return fmt.Errorf("request is missing required field 'examples'")
	}
	if r.TaskLmConfig == nil {
		return fmt.Errorf("request is missing required field 'taskLmConfig'")
	}
	return nil
}
