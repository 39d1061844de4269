package lastfm

import (
	"crypto/md5" //nolint:gosec // the Last.fm signature scheme is defined as MD5
	"encoding/hex"
	"net/url"
	"slices"
	"strings"
)

// Parameter names with special meaning in a request.
const (
	paramSignature = "api_sig"
	paramFormat    = "format"
	paramCallback  = "callback"
	paramMethod    = "method"
	paramAPIKey    = "api_key"
	paramSession   = "sk"
)

// Params is an ordered set of request parameters.
//
// Setting a name that is already present replaces its value and keeps its
// original position (last write wins).
type Params struct {
	names  []string
	values map[string]string
}

// NewParams returns an empty parameter set.
func NewParams() *Params {
	return &Params{values: make(map[string]string)}
}

// Set stores value under name.
func (p *Params) Set(name, value string) {
	if _, ok := p.values[name]; !ok {
		p.names = append(p.names, name)
	}
	p.values[name] = value
}

// Get returns the value stored under name.
func (p *Params) Get(name string) (string, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Delete removes name from the set.
func (p *Params) Delete(name string) {
	if _, ok := p.values[name]; !ok {
		return
	}
	delete(p.values, name)
	p.names = slices.DeleteFunc(p.names, func(n string) bool { return n == name })
}

// Len returns the number of parameters.
func (p *Params) Len() int {
	return len(p.names)
}

// Names returns parameter names in insertion order.
func (p *Params) Names() []string {
	return slices.Clone(p.names)
}

// Signature computes the api_sig value for the current parameters.
//
// Every parameter except api_sig, format and callback is sorted by name and
// concatenated as name+value, the shared secret is appended, and the MD5
// digest of the result is hex encoded.
func (p *Params) Signature(secret string) string {
	names := make([]string, 0, len(p.names))
	for _, name := range p.names {
		switch name {
		case paramSignature, paramFormat, paramCallback:
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteString(p.values[name])
	}
	b.WriteString(secret)

	sum := md5.Sum([]byte(b.String())) //nolint:gosec // required by the protocol
	return hex.EncodeToString(sum[:])
}

// Sign sets api_sig to the signature of the current parameters.
func (p *Params) Sign(secret string) {
	p.Set(paramSignature, p.Signature(secret))
}

// Values converts the set to url.Values for encoding.
func (p *Params) Values() url.Values {
	v := make(url.Values, len(p.names))
	for _, name := range p.names {
		v.Set(name, p.values[name])
	}
	return v
}
