package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dukex/flowdesigner/pkg/log"
	"github.com/dukex/flowdesigner/pkg/models"
	"github.com/dukex/flowdesigner/pkg/routing"
	"github.com/dukex/flowdesigner/pkg/serialization"
	"github.com/dukex/flowdesigner/pkg/validation"
	"github.com/tidwall/gjson"
	"github.com/urfave/cli/v3"
)

var (
	ErrMissingFile = errors.New("flow file argument is required")
	ErrInvalidFlow = errors.New("flow has validation errors")
	ErrInvalidSet  = errors.New("--set expects path=value")
)

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check an exported flow for structural problems",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the full result as JSON",
			},
		},
		Action: func(_ context.Context, command *cli.Command) error {
			doc, err := readFlow(command)
			if err != nil {
				return err
			}

			result := validation.Validate(doc)
			out := command.Root().Writer

			if command.Bool("json") {
				err = writeJSON(out, result)
				if err != nil {
					return err
				}
			} else {
				printValidation(out, doc, result)
			}

			if !result.IsValid {
				return ErrInvalidFlow
			}

			return nil
		},
	}
}

func printValidation(out io.Writer, doc *models.FlowDocument, result validation.Result) {
	fmt.Fprintf(out, "Flow: %s (%s)\n", doc.Name, doc.ID)
	fmt.Fprintf(out, "Nodes: %d, Edges: %d, Routing rules: %d\n", len(doc.Nodes), len(doc.Edges), len(doc.RoutingRules))

	for _, issue := range result.Issues {
		fmt.Fprintf(out, "  [%s] %s: %s\n", issue.Severity, issue.Code, issue.Message)
	}

	if result.IsValid {
		fmt.Fprintf(out, "Valid (%d warnings)\n", len(result.Warnings))
	} else {
		fmt.Fprintf(out, "Invalid (%d errors, %d warnings)\n", len(result.Errors), len(result.Warnings))
	}
}

func NewRouteCommand() *cli.Command {
	return &cli.Command{
		Name:      "route",
		Usage:     "Evaluate the routing rules of an exported flow against a record",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "context",
				Aliases: []string{"c"},
				Usage:   "JSON file holding the record (form, entity, initiator)",
			},
			&cli.StringSliceFlag{
				Name:  "set",
				Usage: "Override a context field, e.g. --set form.amount=5000",
			},
		},
		Action: func(_ context.Context, command *cli.Command) error {
			doc, err := readFlow(command)
			if err != nil {
				return err
			}

			rctx, err := buildContext(command.String("context"), command.StringSlice("set"))
			if err != nil {
				return err
			}

			decision := routing.Evaluate(doc.RoutingRules, rctx)

			log.WithModule("route").Debug("Evaluated routing rules",
				"flow_id", doc.ID, "rules", len(doc.RoutingRules), "matched", decision.Matched)

			return writeJSON(command.Root().Writer, decision)
		},
	}
}

// buildContext loads the context file, if any, and applies the overrides in order.
func buildContext(path string, overrides []string) (routing.Context, error) {
	rctx := routing.EmptyContext()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return routing.Context{}, fmt.Errorf("failed to read context file: %w", err)
		}

		rctx, err = routing.ParseContext(data)
		if err != nil {
			return routing.Context{}, err
		}
	}

	for _, override := range overrides {
		field, raw, ok := strings.Cut(override, "=")
		if !ok || field == "" {
			return routing.Context{}, fmt.Errorf("%w: %q", ErrInvalidSet, override)
		}

		var err error

		rctx, err = rctx.With(field, parseValue(raw))
		if err != nil {
			return routing.Context{}, err
		}
	}

	return rctx, nil
}

// parseValue reads raw as a JSON literal, falling back to a plain string.
func parseValue(raw string) any {
	if raw != "" && gjson.Valid(raw) {
		return gjson.Parse(raw).Value()
	}

	return raw
}

func NewNormalizeCommand() *cli.Command {
	return &cli.Command{
		Name:      "normalize",
		Usage:     "Decode an exported flow and re-encode it in canonical form",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to this file instead of standard output",
			},
		},
		Action: func(_ context.Context, command *cli.Command) error {
			path := command.Args().First()
			if path == "" {
				return ErrMissingFile
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read flow file: %w", err)
			}

			exported, err := serialization.DecodeExported(data)
			if err != nil {
				return err
			}

			exportedAt := exported.ExportedAt
			if exportedAt.IsZero() {
				exportedAt = time.Now()
			}

			normalized, err := serialization.Encode(&exported.FlowDocument, exportedAt)
			if err != nil {
				return err
			}

			output := command.String("output")
			if output == "" {
				_, err = fmt.Fprintln(command.Root().Writer, string(normalized))

				return err
			}

			err = os.WriteFile(output, append(normalized, '\n'), 0o600)
			if err != nil {
				return fmt.Errorf("failed to write normalized flow: %w", err)
			}

			return nil
		},
	}
}

func readFlow(command *cli.Command) (*models.FlowDocument, error) {
	path := command.Args().First()
	if path == "" {
		return nil, ErrMissingFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}

	return serialization.Decode(data)
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}
