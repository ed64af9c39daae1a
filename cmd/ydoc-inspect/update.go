package main

import (
	"encoding/json"
	"fmt"
	"os"

	crdt "github.com/gocrdt-engine/ydoc"
	"github.com/spf13/cobra"
)

var updateUseV2 bool

var updateCmd = &cobra.Command{
	Use:   "update <file>",
	Short: "Decode an update payload produced by Doc.EncodeStateAsUpdateV1/V2",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var summary crdt.UpdateSummary
		if updateUseV2 {
			summary, err = crdt.DescribeUpdateV2(data)
		} else {
			summary, err = crdt.DescribeUpdateV1(data)
		}
		if err != nil {
			return err
		}
		printUpdateSummary(summary)
		return nil
	},
}

func init() {
	updateCmd.Flags().BoolVar(&updateUseV2, "v2", false, "decode as a v2 (columnar) payload instead of v1")
}

func printUpdateSummary(s crdt.UpdateSummary) {
	if outputFormat() == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(s)
		return
	}

	fmt.Printf("%d block(s)\n", len(s.Blocks))
	for _, b := range s.Blocks {
		origin := "-"
		if b.OriginLeft != nil {
			origin = b.OriginLeft.String()
		}
		parent := b.Parent.RootName
		if b.Parent.IsType() {
			parent = "type:" + b.Parent.TypeID.String()
		}
		fmt.Printf("  %s len=%d kind=%s parent=%s originLeft=%s\n",
			b.ID, b.Len, b.Kind, parent, origin)
	}

	if len(s.DeleteSet) == 0 {
		fmt.Println("delete set: empty")
		return
	}
	fmt.Println("delete set:")
	for client, ranges := range s.DeleteSet {
		for _, r := range ranges {
			fmt.Printf("  client %d: [%d, %d)\n", client, r.Start, r.End)
		}
	}
}
