// tap-coda extracts Coda documents, pages, formulas, controls, permissions,
// tables, columns and rows and writes them as a Singer message stream.
//
// Usage:
//
//	tap-coda --config config.yaml [--select rows] [--sqlite out/tap.db]
//	tap-coda discover --config config.yaml
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
