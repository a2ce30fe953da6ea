// Command wizardctl runs the portal wizards from the command line.
//
//	wizardctl validate budget draft.json
//	wizardctl search "porto v" --uf RO
//	wizardctl submit 77 draft.json
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
