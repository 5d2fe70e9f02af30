// Package icon rasterizes one source image into the launcher icon variants an
// Android package needs: plain squares, circle-masked round icons and adaptive
// foreground layers that keep the mandated 18/108 safe-zone margin.
package icon
