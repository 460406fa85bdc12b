package mjpeg

// backend holds the function pointers for the hot per-block paths,
// chosen once per process rather than per call.
type backend struct {
	idct func(dst []uint8, stride int, coeff *[64]int32)
}

var defaultBackend = &backend{idct: inverseDCT8}

// selectBackend returns the backend for this process. Only the scalar
// IDCT exists today; the indirection lets a platform-specific build
// override it without touching callers.
func selectBackend() *backend {
	return defaultBackend
}
