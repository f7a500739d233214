package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pv-groupings/internal/compare"
	"github.com/pv-groupings/internal/config"
	"github.com/pv-groupings/internal/debug"
	"github.com/pv-groupings/internal/geometry"
	"github.com/pv-groupings/internal/pipeline"
)

var (
	schemaFile string
	logLevel   string
	logFormat  string
	force      bool

	logger *slog.Logger
	pipe   *pipeline.Pipeline
)

func main() {
	// Load environment configuration before flag defaults read it
	if err := config.LoadEnv(); err != nil {
		fmt.Printf("Failed to read .env: %v\n", err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:   "pvgroups",
		Short: "PV installation grouping tools",
		Long:  `Group PV installation records that describe the same site, and compare groupings against a reference`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger = debug.NewLogger(logLevel, logFormat)
			slog.SetDefault(logger)

			schemas, err := config.LoadSchemas(schemaFile)
			if err != nil {
				return err
			}
			pipe = pipeline.New(schemas, logger)
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&schemaFile, "config", config.GetEnv("PVG_SCHEMAS", ""), "YAML file with extra or overriding table schemas")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.GetEnv("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", config.GetEnv("LOG_FORMAT", "text"), "Log format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&force, "force", false, "Overwrite existing output files without asking")

	rootCmd.AddCommand(createGroupCmd())
	rootCmd.AddCommand(createUnstackCmd())
	rootCmd.AddCommand(createCompareCmd())
	rootCmd.AddCommand(createGeometryCmd())
	rootCmd.AddCommand(createCheckConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// createGroupCmd builds groups from a relation or match table
func createGroupCmd() *cobra.Command {
	var table, input, output string

	cmd := &cobra.Command{
		Use:   "group",
		Short: "Group a relation or match table",
		Long:  `Build groups from a neighbour table (transitive mode) or a match table (key mode) and write a grouping table`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFile(input); err != nil {
				return err
			}
			if err := confirmOverwrite(output); err != nil {
				return err
			}

			partition, err := pipe.GroupToFile(input, table, output)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Grouping Results ===\n")
			fmt.Printf("Table: %s\n", table)
			fmt.Printf("Groups: %d\n", partition.Len())
			fmt.Printf("Objects: %d\n", partition.MemberCount())
			fmt.Printf("Output: %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&table, "table", "osm_neighbours", "Table schema name")
	cmd.Flags().StringVarP(&input, "file", "f", "", "Input CSV file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output grouping table")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("output")

	return cmd
}

// createUnstackCmd pivots a match table into one row per key
func createUnstackCmd() *cobra.Command {
	var table, input, output string

	cmd := &cobra.Command{
		Use:   "unstack",
		Short: "Pivot a match table into wide form",
		Long:  `Write one row per grouping key with its members spread over numbered columns`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFile(input); err != nil {
				return err
			}
			if err := confirmOverwrite(output); err != nil {
				return err
			}

			u, err := pipe.UnstackToFile(input, table, output)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Unstack Results ===\n")
			fmt.Printf("Keys: %d\n", len(u.Rows))
			fmt.Printf("Width: %d\n", u.Width)
			fmt.Printf("Output: %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&table, "table", "ss_matches", "Table schema name (key mode)")
	cmd.Flags().StringVarP(&input, "file", "f", "", "Input CSV file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output CSV file")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("output")

	return cmd
}

// createCompareCmd compares a candidate grouping against a reference grouping
func createCompareCmd() *cobra.Command {
	var opts pipeline.CompareOptions
	var strategy string

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare a candidate grouping against a reference",
		Long: `Classify every overlapping pair of reference and candidate groups:
  0 correct, 1 missing in candidate, 2 mismatch of the same size,
  3 candidate over-grouped, 4 candidate under-grouped`,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range []string{opts.ReferencePath, opts.CandidatePath} {
				if err := requireFile(f); err != nil {
					return err
				}
			}
			switch compare.Strategy(strategy) {
			case compare.StrategyScan, compare.StrategyIndexed:
				opts.Strategy = compare.Strategy(strategy)
			default:
				return fmt.Errorf("unknown strategy %q (want scan or indexed)", strategy)
			}
			if err := confirmOverwrite(opts.Output); err != nil {
				return err
			}

			result, err := pipe.Compare(opts)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Comparison Results ===\n")
			fmt.Printf("Run ID: %s\n", result.RunID)
			fmt.Printf("Records: %d\n", result.Summary.Total())
			for _, c := range compare.Categories {
				fmt.Printf("  %d %-24s %d\n", int(c), c.String(), result.Summary[c])
			}
			fmt.Printf("Output: %s\n", opts.Output)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.ReferencePath, "reference-file", "", "Reference match table (e.g. Solar Sheffield matches)")
	cmd.Flags().StringVar(&opts.ReferenceSchema, "reference-table", "ss_matches", "Reference table schema name")
	cmd.Flags().StringVar(&opts.CandidatePath, "candidate-file", "", "Candidate grouping table")
	cmd.Flags().StringVar(&opts.CandidateSchema, "candidate-table", "repd_groups", "Candidate table schema name")
	cmd.Flags().StringVar(&opts.ReferenceColumn, "reference-column", pipeline.DefaultReferenceColumn, "Reference key column name in the output")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Output comparison table")
	cmd.Flags().StringVar(&strategy, "strategy", string(compare.StrategyScan), "Matching strategy (scan, indexed)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 1, "Reference groups matched concurrently")
	cmd.MarkFlagRequired("reference-file")
	cmd.MarkFlagRequired("candidate-file")
	cmd.MarkFlagRequired("output")

	return cmd
}

// createGeometryCmd adds OSM geometry to a grouping table
func createGeometryCmd() *cobra.Command {
	var table, input, output string
	clientCfg := geometry.DefaultClientConfig()

	cmd := &cobra.Command{
		Use:   "geometry",
		Short: "Attach OSM geometry to a grouping table",
		Long:  `Look up every grouped OSM object and write its coordinates as "|"-joined lats and lons columns`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFile(input); err != nil {
				return err
			}
			if err := confirmOverwrite(output); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client := geometry.NewOSMClient(clientCfg, logger)
			start := time.Now()
			members, err := pipe.Enrich(ctx, client, input, table, output)
			if err != nil {
				return err
			}

			located := 0
			for _, m := range members {
				if len(m.Coords) > 0 {
					located++
				}
			}
			fmt.Printf("\n=== Geometry Results ===\n")
			fmt.Printf("Objects: %d\n", len(members))
			fmt.Printf("Located: %d\n", located)
			fmt.Printf("Took: %v\n", time.Since(start).Round(time.Second))
			fmt.Printf("Output: %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&table, "table", "osm_neighbours", "Schema the grouping table was written for")
	cmd.Flags().StringVarP(&input, "file", "f", "", "Grouping table")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output grouping table with geometry")
	cmd.Flags().StringVar(&clientCfg.BaseURL, "osm-url", config.GetEnv("OSM_API_URL", clientCfg.BaseURL), "OSM API base URL")
	cmd.Flags().StringVar(&clientCfg.Token, "osm-token", config.GetEnv("OSM_API_TOKEN", ""), "OSM API bearer token")
	cmd.Flags().DurationVar(&clientCfg.Timeout, "timeout", clientCfg.Timeout, "Per-request timeout")
	cmd.Flags().IntVar(&clientCfg.Retry.MaxAttempts, "retries", clientCfg.Retry.MaxAttempts, "Attempts per object before giving up")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("output")

	return cmd
}

// createCheckConfigCmd validates and prints the table schemas
func createCheckConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate and list table schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range pipe.SchemaNames() {
				s, err := pipe.Schema(name)
				if err != nil {
					return err
				}
				fmt.Printf("%-16s mode=%-10s subject=%s", name, s.Mode, s.SubjectColumn)
				if s.RelatedColumn != "" {
					fmt.Printf(" related=%s direction=%s expansion=%s", s.RelatedColumn, s.Direction, s.Expansion)
				}
				if s.GroupingKeyColumn != "" {
					fmt.Printf(" grouping_key=%s", s.GroupingKeyColumn)
				}
				fmt.Printf(" output=%s,%s\n", s.GroupColumn, s.MemberColumn)
			}
			fmt.Println("Configuration OK")
			return nil
		},
	}
}

// requireFile fails before any work when an input is missing
func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("input file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("input file %s is a directory", path)
	}
	return nil
}

// confirmOverwrite asks before replacing an existing output unless --force
// is set
func confirmOverwrite(path string) error {
	if force {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	fmt.Printf("Output file %s exists. Overwrite? (y/n): ", path)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.ToLower(strings.TrimSpace(response))
	if response != "y" && response != "yes" {
		return fmt.Errorf("not overwriting %s (use --force)", path)
	}
	return nil
}
