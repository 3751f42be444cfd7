// Package main generates seat grant keys and signs grants.
//
//	seat-grant -keygen
//	seat-grant -session friday ana bo
package main

import (
	"os"

	"github.com/louisbranch/dragondice/internal/platform/config"
	"github.com/louisbranch/dragondice/internal/tools/seatgrant"
)

func main() {
	if err := seatgrant.Run(os.Args[1:], os.Stdout); err != nil {
		config.Exitf("seat grant: %v", err)
	}
}
