package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/c360studio/archspec/export"
)

func parseCmd(opts *globalOptions) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Lower an architecture file and export the model",
		Long: `Parse reads an architecture file (default: dsl.path from the config),
lowers it into a context map model and writes the model in the chosen format.

When --output is given without --format, the format follows the file extension.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}

			path := a.cfg.DSLPath()
			if len(args) == 1 {
				path = args[0]
			}

			if output != "" && !cmd.Flags().Changed("format") {
				if f, err := export.ParseFormat(filepath.Ext(output)); err == nil {
					format = string(f)
				}
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			model, err := a.loadModel(path)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer file.Close()
				w = file
			}

			if err := export.Write(w, model, f); err != nil {
				return err
			}
			if output != "" {
				a.logger.Info("Model exported", "path", output, "format", string(f))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatJSON), "Output format (json, yaml, turtle, ntriples)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")

	return cmd
}
