package blend

// NoiseReducer post-processes a blended image inside the masked region.
// The mask passed is the caller's original, unnormalized mask.
type NoiseReducer interface {
	Reduce(img *Image, mask *Mask) (*Image, error)
}

// NoiseReducerFunc adapts a plain function to NoiseReducer.
type NoiseReducerFunc func(img *Image, mask *Mask) (*Image, error)

func (f NoiseReducerFunc) Reduce(img *Image, mask *Mask) (*Image, error) {
	return f(img, mask)
}

// PassthroughReducer is the placeholder reducer: it returns its input unchanged
// together with ErrNoiseReductionUnimplemented so callers can tell "no effect"
// apart from "not implemented".
type PassthroughReducer struct{}

func (PassthroughReducer) Reduce(img *Image, _ *Mask) (*Image, error) {
	return img, ErrNoiseReductionUnimplemented
}

func (PassthroughReducer) placeholder() {}

// placeholderReducer matches PassthroughReducer by value or by pointer.
type placeholderReducer interface {
	placeholder()
}
