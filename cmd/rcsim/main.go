// Command rcsim drives a renderer headlessly on the soft backend. It churns meshes and
// transforms for a number of ticks and prints the renderer's stats, which makes it handy
// for sizing arena and frame settings before running against a real device.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
