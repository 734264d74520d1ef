package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/birbparty/stackmob/sdk"
)

type queryFlags struct {
	where  []string
	order  []string
	rng    string
	fields []string
	expand int
}

func (f *queryFlags) register(cmd *cobra.Command, withPaging bool) {
	cmd.Flags().StringArrayVarP(&f.where, "where", "w", nil, `filter clause, e.g. "score>=100" (repeatable)`)
	if withPaging {
		cmd.Flags().StringSliceVarP(&f.order, "order", "o", nil, `sort keys, e.g. "score:desc,name"`)
		cmd.Flags().StringVarP(&f.rng, "range", "r", "", `result window, e.g. "0-9" or "10-"`)
		cmd.Flags().StringSliceVar(&f.fields, "select", nil, "fields to return")
		cmd.Flags().IntVarP(&f.expand, "expand", "e", 0, "depth of related objects to inline")
	}
}

func (f *queryFlags) build(schema string) (*sdk.Query, error) {
	q := sdk.Objects(schema)
	for _, clause := range f.where {
		if err := applyWhere(q, clause); err != nil {
			return nil, err
		}
	}
	if err := applyOrder(q, f.order); err != nil {
		return nil, err
	}
	if f.rng != "" {
		if err := applyRange(q, f.rng); err != nil {
			return nil, err
		}
	}
	if len(f.fields) > 0 {
		q.Select(f.fields...)
	}
	if f.expand > 0 {
		q.ExpandDepth(f.expand)
	}
	return q, nil
}

func newGetCommand(a *app) *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:   "get <schema> [id]",
		Short: "Fetch one object or query a schema",
		Example: `  stackmob get game g1 --expand 1
  stackmob get game -w "score>=100" -o score:desc -r 0-9`,
		Args: cobra.RangeArgs(1, 2),
		RunE: timed(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			client, err := a.sdkClient(ctx)
			if err != nil {
				return err
			}

			if len(args) == 2 {
				var opts []sdk.RequestOption
				if flags.expand > 0 {
					opts = append(opts, sdk.WithRequestHeader(sdk.HeaderExpand, strconv.Itoa(flags.expand)))
				}
				resp, err := client.Get(ctx, args[0]+"/"+args[1], opts...).Wait(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp.Body)
			}

			q, err := flags.build(args[0])
			if err != nil {
				return err
			}
			body, err := client.Query(ctx, q).Wait(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		}),
	}
	flags.register(cmd, true)
	return cmd
}

func newCountCommand(a *app) *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:     "count <schema>",
		Short:   "Count the objects matching a query",
		Example: `  stackmob count game -w "score>100"`,
		Args:    requireArgs(1, "<schema>"),
		RunE: timed(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			client, err := a.sdkClient(ctx)
			if err != nil {
				return err
			}
			q, err := flags.build(args[0])
			if err != nil {
				return err
			}
			n, err := client.Count(ctx, q).Wait(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		}),
	}
	flags.register(cmd, false)
	return cmd
}

// readBody returns data, or stdin when data is "-"
func readBody(cmd *cobra.Command, data string) ([]byte, error) {
	if data == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		data = strings.TrimSpace(string(b))
	}
	if data == "" {
		return nil, fmt.Errorf("--data is required")
	}
	return jsonBody(data)
}

func newCreateCommand(a *app) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:     "create <schema>",
		Short:   "Create an object",
		Example: `  stackmob create game -d '{"name":"chess","score":3}'`,
		Args:    requireArgs(1, "<schema>"),
		RunE: timed(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			body, err := readBody(cmd, data)
			if err != nil {
				return err
			}
			client, err := a.sdkClient(ctx)
			if err != nil {
				return err
			}
			resp, err := client.Post(ctx, args[0], body).Wait(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp.Body)
		}),
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", `object JSON, or "-" for stdin`)
	return cmd
}

func newUpdateCommand(a *app) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:     "update <schema> <id>",
		Short:   "Update fields of an object",
		Example: `  stackmob update game g1 -d '{"score":4}'`,
		Args:    requireArgs(2, "<schema> <id>"),
		RunE: timed(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			body, err := readBody(cmd, data)
			if err != nil {
				return err
			}
			client, err := a.sdkClient(ctx)
			if err != nil {
				return err
			}
			resp, err := client.Put(ctx, args[0]+"/"+args[1], body).Wait(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp.Body)
		}),
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", `fields JSON, or "-" for stdin`)
	return cmd
}

func newDeleteCommand(a *app) *cobra.Command {
	var cascade bool
	cmd := &cobra.Command{
		Use:   "delete <schema> <id>",
		Short: "Delete an object",
		Args:  requireArgs(2, "<schema> <id>"),
		RunE: timed(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			client, err := a.sdkClient(ctx)
			if err != nil {
				return err
			}
			var opts []sdk.RequestOption
			if cascade {
				opts = append(opts, sdk.WithCascadeDelete())
			}
			if _, err := client.Delete(ctx, args[0]+"/"+args[1], opts...).Wait(ctx); err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "Deleted %s/%s", args[0], args[1])
			return nil
		}),
	}
	cmd.Flags().BoolVar(&cascade, "cascade", false, "also delete related objects")
	return cmd
}
