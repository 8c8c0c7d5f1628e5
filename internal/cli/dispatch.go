package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/moon/internal/value"
)

// operand converts a command-line argument to a Value. With asJSON the
// argument must be a JSON document; otherwise it is taken literally.
func operand(arg string, asJSON bool) (value.Value, error) {
	if !asJSON {
		return value.String(arg), nil
	}
	v, err := value.Unmarshal([]byte(arg))
	if err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid JSON %q: %v", arg, err))
	}
	return v, nil
}

// dispatch runs op against a freshly opened runtime and writes its result.
func dispatch(cmd *cobra.Command, opts *RootOptions, op func(ctx context.Context, rt *runtime) (value.Value, error)) error {
	f := opts.formatter(cmd)
	return withRuntime(cmd, opts, func(rt *runtime) error {
		v, err := op(cmd.Context(), rt)
		if err != nil {
			if isExitError(err) {
				return err
			}
			return f.Fail(err)
		}
		return f.Success(v)
	})
}

// NewMatchCommand creates the match command.
func NewMatchCommand(rootOpts *RootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "match <left> <right>",
		Short: "Match a left operand against a right operand",
		Long: `Match a left operand against a right operand.

A partial result is printed as an encoded call that can be passed back
as the next left operand.

Examples:
  moon match add 2                       # add<:>["2"]
  moon match 'add<:>["2"]' 3             # 5
  moon match users 1                     # record users/1, or users/?
  moon match len '["a","b"]' --json      # 2`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			right, err := operand(args[1], asJSON)
			if err != nil {
				return err
			}
			return dispatch(cmd, rootOpts, func(ctx context.Context, rt *runtime) (value.Value, error) {
				return rt.engine.Match(ctx, args[0], right)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "parse <right> as JSON")
	return cmd
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <expr>",
		Short: "Execute a complete expression",
		Long: `Execute a complete expression.

The expression is a JSON sequence folded left to right through match, or
a complete call string. Arguments that are not valid JSON are taken as
call strings.

Examples:
  moon exec '["add","2","3"]'
  moon exec '["for",[["add","1","2"],["mul","2","5"]]]'
  moon exec 'add<:>["2","3"]'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr, err := value.Unmarshal([]byte(args[0]))
			if err != nil {
				expr = value.String(args[0])
			}
			return dispatch(cmd, rootOpts, func(ctx context.Context, rt *runtime) (value.Value, error) {
				return rt.engine.Execute(ctx, expr)
			})
		},
	}
	return cmd
}

// NewInsertCommand creates the insert command.
func NewInsertCommand(rootOpts *RootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "insert <collection> <id> <value>",
		Short: "Upsert a record",
		Long: `Upsert a record, creating the collection if needed.

The id "?" is the collection's default record.

Examples:
  moon insert users 1 alice
  moon insert users '?' guest
  moon insert routes home '["mul","6"]' --json`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := operand(args[2], asJSON)
			if err != nil {
				return err
			}
			return dispatch(cmd, rootOpts, func(ctx context.Context, rt *runtime) (value.Value, error) {
				name, err := rt.engine.Insert(ctx, args[0], args[1], v)
				return value.String(name), err
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "parse <value> as JSON")
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection> <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, rootOpts, func(ctx context.Context, rt *runtime) (value.Value, error) {
				id, err := rt.engine.Delete(ctx, args[0], args[1])
				return value.String(id), err
			})
		},
	}
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <collection>",
		Short: "Drop a collection and all of its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, rootOpts, func(ctx context.Context, rt *runtime) (value.Value, error) {
				name, err := rt.engine.Remove(ctx, args[0])
				return value.String(name), err
			})
		},
	}
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <key>",
		Short: "Describe a collection, an atom, or everything (fn)",
		Long: `Describe a key.

  fn           every collection and atom name
  <atom>       the atom name itself
  <collection> the collection's records as {id: value}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd, rootOpts, func(ctx context.Context, rt *runtime) (value.Value, error) {
				return rt.engine.Watch(ctx, args[0])
			})
		},
	}
}
