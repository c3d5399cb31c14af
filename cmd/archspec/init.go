package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/c360studio/archspec/config"
)

const starterArchitecture = `ContextMap Shop {
  Ordering [ACL] -> [OHS] Catalog;
}

Context Ordering { Aggregate Order; }
Context Catalog { Aggregate Product; }

Aggregate Order { Entity Order, OrderLine; }
Entity Order { identify id: UUID; }
Entity OrderLine { quantity: Int; }

Aggregate Product { Entity Product; }
Entity Product { identify sku: String; }

layered DDD {
  dependency {
    interface -> application;
    application -> domain;
    interface -> domain;
    infrastructure -> domain;
  }
  layer interface { package: "com.example.shop.rest"; }
  layer application { package: "com.example.shop.application"; }
  layer domain { package: "com.example.shop.domain"; }
  layer infrastructure { package: "com.example.shop.infrastructure"; }
}

SourceSet Sources {
  main { parser: "java"; srcDir: ["src/main/java"]; }
}
`

func initCmd(opts *globalOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a project config and a starter architecture file",
		Long: `Init writes archspec.yaml into the target directory and, when missing,
a starter architecture file at the configured dsl.path. Existing files are
left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd.ErrOrStderr(), opts.logLevel, opts.logFormat)

			if dir == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("get working directory: %w", err)
				}
				dir = wd
			}

			out := cmd.OutOrStdout()
			cfgPath, created, err := config.NewLoader(logger).EnsureProjectConfig(dir)
			if err != nil {
				return fmt.Errorf("write project config: %w", err)
			}
			if created {
				fmt.Fprintf(out, "✓ Created %s\n", cfgPath)
			} else {
				fmt.Fprintf(out, "  Kept existing %s\n", cfgPath)
			}

			dslPath := filepath.Join(dir, config.DefaultConfig().DSL.Path)
			if _, err := os.Stat(dslPath); err == nil {
				fmt.Fprintf(out, "  Kept existing %s\n", dslPath)
				return nil
			} else if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("stat architecture: %w", err)
			}
			if err := os.WriteFile(dslPath, []byte(starterArchitecture), 0644); err != nil {
				return fmt.Errorf("write architecture: %w", err)
			}
			fmt.Fprintf(out, "✓ Created %s\n", dslPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Target directory (default: current directory)")

	return cmd
}
