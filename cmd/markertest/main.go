// Command markertest runs marker detection on a single image and prints the
// decoded markers.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gaze-markers/internal/detector"
	"gaze-markers/internal/features"
	"gaze-markers/internal/source"
	"gaze-markers/pkg/geometry"

	"github.com/jedib0t/go-pretty/v6/table"
)

func main() {
	imagePath := flag.String("image", "", "Path to image (TIFF, PNG, or JPEG)")
	outDir := flag.String("out", "", "Directory for the composite and surface images")
	minArea := flag.Float64("min-area", detector.DefaultParams().MinArea, "Minimum candidate area in px²")
	noSurface := flag.Bool("no-surface", false, "Skip surface extraction")
	crop := flag.Bool("crop", false, "Crop the surface instead of correcting perspective")
	debug := flag.Bool("debug", false, "Draw Hough segments on the composite")
	point := flag.String("point", "", "Frame point x,y to look up among the detected features")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: markertest -image <path> [-out dir] [-min-area 250] [-no-surface] [-crop] [-debug] [-point x,y]")
		os.Exit(1)
	}
	var px, py float64
	if *point != "" {
		if _, err := fmt.Sscanf(*point, "%g,%g", &px, &py); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid point %q: %v\n", *point, err)
			os.Exit(1)
		}
	}

	frame, err := source.LoadMat(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		os.Exit(1)
	}
	defer frame.Close()
	fmt.Printf("Loaded %s: %dx%d, %d channel(s)\n", *imagePath, frame.Cols(), frame.Rows(), frame.Channels())

	params := detector.DefaultParams().WithMinArea(*minArea).WithDebug(*debug)
	params = params.WithSurface(!*noSurface, params.SurfaceSize, !*crop)

	d, err := detector.New(params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid parameters: %v\n", err)
		os.Exit(1)
	}
	defer d.Close()

	start := time.Now()
	res, err := d.ProcessFrame(source.Frame{Mat: frame, Number: 1, Timestamp: start})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Detection failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Detection took %v: %d candidate(s), %d rejected, %d line segment(s)\n\n",
		time.Since(start).Round(time.Microsecond), res.Candidates, res.Rejected, len(res.Lines))

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Rotation", "Facing", "Center", "Bounds"})
	for _, m := range res.Markers {
		t.AppendRow(table.Row{m.ID, m.Rotation, m.Rotation.Direction(),
			fmt.Sprintf("(%d,%d)", m.Center.X, m.Center.Y),
			fmt.Sprintf("%dx%d@(%d,%d)", m.Bounds.Width, m.Bounds.Height, m.Bounds.X, m.Bounds.Y)})
	}
	t.AppendFooter(table.Row{"", "", "", "Markers", len(res.Markers)})
	t.Render()

	fmt.Printf("\nSurface: %s", res.Surface.Status)
	if res.Surface.Err != nil {
		fmt.Printf(" (%v)", res.Surface.Err)
	}
	fmt.Println()

	if *point != "" {
		lookup(res, px, py)
	}

	if *outDir == "" {
		return
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", *outDir, err)
		os.Exit(1)
	}
	pins := d.CompositePin()
	path := filepath.Join(*outDir, pins.FileName(res.Frame))
	if err := pins.SavePNG(path); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save composite: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Saved %s\n", path)

	if res.Surface.Detected() {
		sp := d.SurfacePin()
		path := filepath.Join(*outDir, sp.FileName(res.Frame))
		if err := sp.SavePNG(path); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save surface: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Saved %s\n", path)
	}
}

// lookup reports which feature covers a frame point and where the point lands
// on the extracted surface.
func lookup(res *detector.Result, x, y float64) {
	set := features.NewSet()
	fs := make([]features.Feature, 0, len(res.Markers)+1)
	for _, m := range res.Markers {
		fs = append(fs, features.FromMarker(m))
	}
	if res.Surface.Detected() {
		fs = append(fs, features.FromSurface(&res.Surface))
	}
	set.Replace(res.Frame, fs)

	fmt.Printf("\nPoint (%g,%g): ", x, y)
	if f, ok := set.HitTest(x, y); ok {
		fmt.Printf("%s", f)
	} else {
		fmt.Printf("no feature")
	}
	if sp, ok := res.Surface.ToSurface(geometry.Point2D{X: x, Y: y}); ok {
		fmt.Printf(", surface (%.1f,%.1f)", sp.X, sp.Y)
	}
	fmt.Println()
}
