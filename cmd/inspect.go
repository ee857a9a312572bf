package main

import (
	"fmt"
	"os"

	"kdstore/internal/kdtree"
	"kdstore/internal/storage"

	"github.com/spf13/cobra"
)

type inspectResult struct {
	File            string `json:"file"`
	Compression     string `json:"compression"`
	StoredBytes     int    `json:"stored_bytes"`
	Dimension       int    `json:"dimension"`
	Count           int    `json:"count"`
	MemoryFootprint int64  `json:"memory_footprint"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Decode a tree file and print its summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := inspectFile(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "File:        %s\n", res.File)
		fmt.Fprintf(out, "Compression: %s\n", res.Compression)
		fmt.Fprintf(out, "Stored:      %s\n", formatBytes(int64(res.StoredBytes)))
		fmt.Fprintf(out, "Dimension:   %d\n", res.Dimension)
		fmt.Fprintf(out, "Points:      %d\n", res.Count)
		fmt.Fprintf(out, "Footprint:   %s\n", formatBytes(res.MemoryFootprint))
		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON")
}

func inspectFile(path string) (*inspectResult, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := storage.Decompress(blob)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	tree, err := kdtree.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &inspectResult{
		File:            path,
		Compression:     storage.Compression(blob[0]).String(),
		StoredBytes:     len(blob),
		Dimension:       tree.Dimension(),
		Count:           tree.Count(),
		MemoryFootprint: tree.MemoryFootprint(),
	}, nil
}
