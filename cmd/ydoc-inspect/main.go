// Command ydoc-inspect decodes state vectors and update payloads for
// offline inspection. It never integrates anything into a Doc — it only
// renders what DecodeUpdateV1/V2 and DecodeStateVector would see.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
