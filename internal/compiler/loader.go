package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/reconcile/internal/ir"
)

// requestSchema constrains CUE request documents before they are decoded.
const requestSchema = `
#Side: {
	host:                string & !=""
	port:                int & >0 & <65536
	engine_type:         string & !=""
	access_mode?:        string
	database:            string & !=""
	user?:               string
	password?:           string
	query:               string & !=""
	columns: [string, ...string]
	primary_key_columns: [...string]
	table_name?:         string
}

#Request: {
	source: #Side
	target: #Side & {table_name: string & !=""}
	cron_expression?: string
}
`

// LoadError is a request file that could not be read or decoded.
type LoadError struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// LoadRequest reads a source/target request from a .cue, .yaml, .yml or
// .json file. CUE documents are unified with #Request before decoding.
// The result is not validated; Compile does that.
func LoadRequest(path string) (ir.TransferRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ir.TransferRequest{}, fmt.Errorf("read request: %w", err)
	}

	switch ext := filepath.Ext(path); ext {
	case ".cue":
		return decodeCUE(path, data)
	case ".yaml", ".yml":
		return decodeYAML(path, data)
	case ".json":
		return decodeJSON(path, data)
	default:
		return ir.TransferRequest{}, &LoadError{Path: path, Message: fmt.Sprintf("unsupported request format %q", ext)}
	}
}

func decodeCUE(path string, data []byte) (ir.TransferRequest, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(requestSchema, cue.Filename("request_schema.cue"))
	if err := schema.Err(); err != nil {
		return ir.TransferRequest{}, fmt.Errorf("compile request schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return ir.TransferRequest{}, cueLoadError(path, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Request")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return ir.TransferRequest{}, cueLoadError(path, err)
	}

	var req ir.TransferRequest
	if err := unified.Decode(&req); err != nil {
		return ir.TransferRequest{}, cueLoadError(path, err)
	}
	return req, nil
}

// cueLoadError keeps the position of the first CUE error.
func cueLoadError(path string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Path: path, Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{Path: path, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}

func decodeYAML(path string, data []byte) (ir.TransferRequest, error) {
	var req ir.TransferRequest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&req); err != nil {
		return ir.TransferRequest{}, &LoadError{Path: path, Message: err.Error()}
	}
	return req, nil
}

func decodeJSON(path string, data []byte) (ir.TransferRequest, error) {
	var req ir.TransferRequest
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return ir.TransferRequest{}, &LoadError{Path: path, Message: err.Error()}
	}
	return req, nil
}
