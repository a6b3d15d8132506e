package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
	cueyaml "cuelang.org/go/encoding/yaml"
)

// fleetSchema constrains the fleet file: a closed map of printer name to
// connection details, every field required and non-empty. Validation
// failures here are fatal startup errors.
const fleetSchema = `
close({
	[string]: {
		hostname:      string & != ""
		access_code:   string & != ""
		serial_number: string & != ""
	}
})
`

// Printer is one fleet entry.
type Printer struct {
	Hostname     string `json:"hostname"`
	AccessCode   string `json:"access_code"`
	SerialNumber string `json:"serial_number"`
}

// Fleet maps printer display name to connection details.
type Fleet map[string]Printer

// Names returns the printer names in sorted order. Slot order comes from
// the status table, not from here.
func (f Fleet) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadFleet reads and validates a fleet file. JSON and YAML are accepted,
// keyed off the file extension. The file is unified with the schema and
// must be concrete: a printer missing hostname, access_code, or
// serial_number fails here, before any session is dialed.
func LoadFleet(path string) (Fleet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fleet file: %w", err)
	}

	ctx := cuecontext.New()

	schema := ctx.CompileString(fleetSchema)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile fleet schema: %w", err)
	}

	var value cue.Value
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		file, err := cueyaml.Extract(path, data)
		if err != nil {
			return nil, fmt.Errorf("parse fleet yaml: %w", err)
		}
		value = ctx.BuildFile(file)
	default:
		expr, err := cuejson.Extract(path, data)
		if err != nil {
			return nil, fmt.Errorf("parse fleet json: %w", err)
		}
		value = ctx.BuildExpr(expr)
	}
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("build fleet value: %w", err)
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("fleet file %s: %w", path, err)
	}

	var fleet Fleet
	if err := unified.Decode(&fleet); err != nil {
		return nil, fmt.Errorf("decode fleet: %w", err)
	}
	if len(fleet) == 0 {
		return nil, fmt.Errorf("fleet file %s defines no printers", path)
	}
	return fleet, nil
}
