package metadata

import "sync"

// Provider builds and validates metadata once, on first use. It is safe for
// concurrent use.
type Provider struct {
	load func() (*Metadata, error)
}

// NewProvider returns a Provider that calls build at most once.
func NewProvider(build func() (*Metadata, error)) *Provider {
	return &Provider{
		load: sync.OnceValues(func() (*Metadata, error) {
			md, err := build()
			if err != nil {
				return nil, err
			}
			if err := md.Validate(); err != nil {
				return nil, err
			}
			return md, nil
		}),
	}
}

// Static returns a Provider for metadata that is already built.
func Static(md *Metadata) *Provider {
	return NewProvider(func() (*Metadata, error) { return md, nil })
}

// Get returns the validated metadata. The error, if any, is the same on every call.
func (p *Provider) Get() (*Metadata, error) {
	return p.load()
}
