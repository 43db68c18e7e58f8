// Package imageio loads, saves and transforms the raster data the
// reconstruction pipeline works on. Images are held as dense float64 planes
// so the solvers never touch encoder-specific pixel formats.
package imageio
