package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/perstore/internal/ir"
	"github.com/roach88/perstore/internal/store"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	NoOverwrite bool
}

// Fixture is a YAML file of records to import.
//
//	records:
//	  - {id: 1, name: widget}
//	  - {name: gadget}
type Fixture struct {
	Records []map[string]any `yaml:"records"`
}

// ImportResult summarizes an import.
type ImportResult struct {
	Imported int      `json:"imported"`
	IDs      []string `json:"ids"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <fixture.yaml>",
		Short: "Store every record in a YAML fixture",
		Long: `Store every record listed under "records" in a YAML fixture.

Records are written in file order. With --no-overwrite the import stops at
the first record whose key is already taken.

Example:
  perstore import fixtures/users.yaml --db ./data`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return importFixture(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.NoOverwrite, "no-overwrite", false, "fail on records whose key already exists")

	return cmd
}

// LoadFixture reads and converts a fixture file.
func LoadFixture(path string) ([]ir.IRObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}

	var fx Fixture
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&fx); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	recs := make([]ir.IRObject, 0, len(fx.Records))
	for i, raw := range fx.Records {
		if raw == nil {
			return nil, fmt.Errorf("records[%d]: record must be a mapping", i)
		}
		rec, err := ir.ObjectFromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("records[%d]: %w", i, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func importFixture(opts *ImportOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	recs, err := LoadFixture(path)
	if err != nil {
		_ = f.Error(ErrCodeInvalidInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid fixture", err)
	}

	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeSession(s)

	result := ImportResult{IDs: make([]string, 0, len(recs))}
	for i, rec := range recs {
		id, err := s.store.Put(cmd.Context(), rec, store.PutOptions{NoOverwrite: opts.NoOverwrite})
		if err != nil {
			f.VerboseLog("import stopped at record %d after %d imported", i, result.Imported)
			return f.Fail(err)
		}
		result.Imported++
		result.IDs = append(result.IDs, ir.String(id))
		f.VerboseLog("imported %s", ir.String(id))
	}

	if f.Format == "json" {
		return f.Success(result)
	}
	return f.Success(fmt.Sprintf("imported %d record(s)", result.Imported))
}
