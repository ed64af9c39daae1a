package main

import (
	"encoding/json"
	"fmt"
	"os"

	crdt "github.com/gocrdt-engine/ydoc"
	"github.com/spf13/cobra"
)

var stateVectorCmd = &cobra.Command{
	Use:   "statevector <file>",
	Short: "Decode a state vector file produced by Doc.EncodeStateVector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		sv, err := crdt.DecodeStateVector(data)
		if err != nil {
			return err
		}
		printStateVector(sv)
		return nil
	},
}

func printStateVector(sv crdt.StateVector) {
	if outputFormat() == "json" {
		raw := make(map[string]uint32, len(sv))
		for _, c := range sv.Clients() {
			raw[fmt.Sprintf("%d", c)] = sv.Get(c)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(raw)
		return
	}
	for _, c := range sv.Clients() {
		fmt.Printf("client %d: next clock %d\n", c, sv.Get(c))
	}
}
