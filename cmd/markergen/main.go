// Command markergen writes printable marker images.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gaze-markers/internal/marker"

	"github.com/disintegration/imaging"
)

func main() {
	id := flag.Int("id", -1, "Marker ID (0-63); omit with -all")
	all := flag.Bool("all", false, "Write every marker ID")
	cell := flag.Int("cell", 40, "Cell size in pixels")
	outDir := flag.String("out", ".", "Output directory")
	flag.Parse()

	var ids []int
	switch {
	case *all:
		for i := 0; i <= marker.MaxID; i++ {
			ids = append(ids, i)
		}
	case *id >= 0:
		ids = []int{*id}
	default:
		fmt.Println("Usage: markergen (-id <0-63> | -all) [-cell 40] [-out dir]")
		os.Exit(1)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", *outDir, err)
		os.Exit(1)
	}

	for _, n := range ids {
		path := filepath.Join(*outDir, fmt.Sprintf("marker-%02d.png", n))
		if err := write(n, *cell, path); err != nil {
			fmt.Fprintf(os.Stderr, "Marker %d: %v\n", n, err)
			os.Exit(1)
		}
		fmt.Println(path)
	}
}

func write(id, cell int, path string) error {
	m, err := marker.Render(id, cell)
	if err != nil {
		return err
	}
	defer m.Close()

	img, err := m.ToImage()
	if err != nil {
		return err
	}
	return imaging.Save(img, path)
}
