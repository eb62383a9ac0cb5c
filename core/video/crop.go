package video

// Rect is a crop window in source pixels.
type Rect struct {
	X, Y, W, H int
}

// CropFor returns the largest centered 9:16 window inside a w x h frame.
// Sizes are rounded down to even values for the encoder.
func CropFor(w, h int) Rect {
	if w*16 > h*9 {
		// wider than target, crop the sides
		cw := even(h * 9 / 16)
		ch := even(h)
		return Rect{X: (w - cw) / 2, Y: (h - ch) / 2, W: cw, H: ch}
	}
	cw := even(w)
	ch := even(w * 16 / 9)
	return Rect{X: (w - cw) / 2, Y: (h - ch) / 2, W: cw, H: ch}
}
