package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/perstore/internal/ir"
	"github.com/roach88/perstore/internal/store"
)

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print the record stored under an identifier",
		Long: `Print the record stored under an identifier.

Numeric identifiers address integer keys; use put --id with a JSON string
to store under a numeric-looking string.

Example:
  perstore get 42 --db ./data`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return getRecord(rootOpts, args[0], cmd)
		},
	}
}

func getRecord(opts *RootOptions, rawID string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	s, err := openSession(opts)
	if err != nil {
		return err
	}
	defer closeSession(s)

	id := ir.ParseScalar(rawID)
	rec, found, err := s.store.Get(cmd.Context(), id)
	if err != nil {
		return f.Fail(err)
	}
	if !found {
		msg := fmt.Sprintf("no record with id %s", rawID)
		_ = f.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitFailure, msg)
	}
	return f.Records([]ir.IRObject{rec})
}

// PutOptions holds flags for the put command.
type PutOptions struct {
	*RootOptions
	ID          string
	NoOverwrite bool
	Sync        bool
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "put <json>",
		Short: "Store a record",
		Long: `Store a JSON object as a record and print its identifier.

The identifier is --id when given, otherwise the record's own identifier
field, otherwise a new UUIDv7.

Examples:
  perstore put '{"id":1,"name":"widget"}' --db ./data
  perstore put '{"name":"gadget"}' --no-overwrite --db ./data
  perstore put '{"name":"gizmo"}' --id '"sku-9"' --db ./data`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return putRecord(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "identifier as JSON, or a bare integer or string")
	cmd.Flags().BoolVar(&opts.NoOverwrite, "no-overwrite", false, "fail if a record already exists at the key")
	cmd.Flags().BoolVar(&opts.Sync, "sync", false, "flush to disk before returning")

	return cmd
}

func putRecord(opts *PutOptions, raw string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	rec, err := parseRecord(raw)
	if err != nil {
		_ = f.Error(ErrCodeInvalidInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid record", err)
	}

	putOpts := store.PutOptions{NoOverwrite: opts.NoOverwrite, Sync: opts.Sync}
	if cmd.Flags().Changed("id") {
		putOpts.ID = parseIDFlag(opts.ID)
	}

	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeSession(s)

	id, err := s.store.Put(cmd.Context(), rec, putOpts)
	if err != nil {
		return f.Fail(err)
	}

	if f.Format == "json" {
		return f.Success(map[string]any{"id": id})
	}
	return f.Success(ir.String(id))
}

// parseRecord decodes a JSON object into a record.
func parseRecord(raw string) (ir.IRObject, error) {
	var rec ir.IRObject
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("record must be a JSON object: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("record must be a JSON object, got null")
	}
	return rec, nil
}

// parseIDFlag accepts a JSON scalar ("\"7\"", 7) or a bare word.
func parseIDFlag(raw string) ir.IRValue {
	if v, err := ir.UnmarshalIRValue([]byte(raw)); err == nil {
		return v
	}
	return ir.ParseScalar(raw)
}

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	Sync bool
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove the record stored under an identifier",
		Long: `Remove the record stored under an identifier.
Deleting a missing record succeeds.

Example:
  perstore delete 42 --db ./data`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return deleteRecord(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Sync, "sync", false, "flush to disk before returning")

	return cmd
}

func deleteRecord(opts *DeleteOptions, rawID string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeSession(s)

	id := ir.ParseScalar(rawID)
	if err := s.store.Delete(cmd.Context(), id, store.DeleteOptions{Sync: opts.Sync}); err != nil {
		return f.Fail(err)
	}

	if f.Format == "json" {
		return f.Success(map[string]any{"deleted": id})
	}
	f.VerboseLog("deleted %s", rawID)
	return nil
}
