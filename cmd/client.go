package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"kdstore/client-sdk/Go/client"
	"kdstore/internal/embedding/provider"

	"github.com/spf13/cobra"
)

var (
	treeName      string
	embeddingFlag string
	textFlag      string
	providerFlag  string
	dataFlag      string
	topN          int
	jsonOutput    bool
)

var insertCmd = &cobra.Command{
	Use:   "insert",
	Short: "Insert a point into a tree",
	Example: `  kdstore insert --tree docs --embedding 0.1,0.2,0.3 --data "first"
  kdstore insert --tree docs --text "hello world" --provider openai`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		vec, err := resolveEmbedding(ctx)
		if err != nil {
			return err
		}
		data := dataFlag
		if data == "" {
			data = textFlag
		}
		if err := client.New(serverURL).Insert(ctx, treeName, vec, data); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "inserted into %s\n", treeName)
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Find the nearest points in a tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		vec, err := resolveEmbedding(ctx)
		if err != nil {
			return err
		}
		neighbors, err := client.New(serverURL).NearestTopN(ctx, treeName, vec, topN)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), neighbors)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tDISTANCE\tDATA")
		for i, nb := range neighbors {
			fmt.Fprintf(w, "%d\t%.6f\t%s\n", i+1, nb.Distance, nb.Data)
		}
		return w.Flush()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show every tree known to the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		report, err := client.New(serverURL).Status(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), report)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Trees: %d  Resident: %s  Budget: %s\n",
			report.ActiveTrees, formatBytes(report.ResidentBytes), formatBytes(report.MemoryBudgetBytes))
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDIM\tPOINTS\tRESIDENT\tIDLE\tSIZE\tERROR")
		for _, t := range report.Trees {
			fmt.Fprintf(w, "%s\t%d\t%d\t%v\t%ds\t%s\t%s\n",
				t.Name, t.Dimension, t.Count, t.Resident, t.LastAccessed, formatBytes(t.MemoryBytes), t.Error)
		}
		return w.Flush()
	},
}

func init() {
	for _, cmd := range []*cobra.Command{insertCmd, queryCmd} {
		cmd.Flags().StringVarP(&treeName, "tree", "t", "", "tree name")
		cmd.Flags().StringVarP(&embeddingFlag, "embedding", "e", "", "comma separated embedding")
		cmd.Flags().StringVar(&textFlag, "text", "", "text to embed instead of --embedding")
		cmd.Flags().StringVar(&providerFlag, "provider", "openai", "embedding provider for --text: openai, aliyun or gemini")
		cmd.MarkFlagRequired("tree")
		cmd.MarkFlagsMutuallyExclusive("embedding", "text")
		cmd.MarkFlagsOneRequired("embedding", "text")
	}
	insertCmd.Flags().StringVarP(&dataFlag, "data", "d", "", "payload stored with the point (defaults to --text)")
	queryCmd.Flags().IntVarP(&topN, "n", "n", 1, "number of neighbours")
	queryCmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON")
	statusCmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON")
}

func resolveEmbedding(ctx context.Context) ([]float64, error) {
	if textFlag == "" {
		return parseEmbedding(embeddingFlag)
	}
	p, err := provider.New(ctx, providerFlag)
	if err != nil {
		return nil, err
	}
	return p.Embed(ctx, textFlag)
}

// parseEmbedding reads a comma separated list of numbers.
func parseEmbedding(s string) ([]float64, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return nil, errors.New("embedding is empty")
	}
	parts := strings.Split(s, ",")
	vec := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid embedding value %q: %w", part, err)
		}
		vec = append(vec, v)
	}
	return vec, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
