//go:build !linux

package memsample

// NewSampler returns the OS-appropriate Sampler implementation.
func NewSampler() Sampler {
	return unsupportedSampler{}
}
