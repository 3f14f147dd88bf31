// Package ipv4 registers the first two words of the IPv4 header.
package ipv4

import (
	_ "embed"
	"encoding/binary"
	"fmt"

	"github.com/gopacket/gopacket/layers"
	"github.com/wader/bitlayout/format"
	"github.com/wader/bitlayout/pkg/layout"
	netipv4 "golang.org/x/net/ipv4"
	"lukechampine.com/uint128"
)

//go:embed ipv4_word0.yml
var word0YAML []byte

//go:embed ipv4_word1.yml
var word1YAML []byte

var (
	Word0 *layout.Layout
	Word1 *layout.Layout
)

func init() {
	Word0 = format.MustRegisterYAML(word0YAML)
	Word1 = format.MustRegisterYAML(word1YAML)
}

// Decode reads both words from the start of an IPv4 header.
func Decode(b []byte) (w0 layout.Container, w1 layout.Container, err error) {
	if len(b) < 8 {
		return w0, w1, fmt.Errorf("ipv4 header too short: %d bytes", len(b))
	}
	w0 = Word0.MustFromUint64(uint64(binary.BigEndian.Uint32(b[0:4])))
	w1 = Word1.MustFromUint64(uint64(binary.BigEndian.Uint32(b[4:8])))
	return w0, w1, nil
}

type kv struct {
	name string
	v    any
}

func withAll(c layout.Container, kvs ...kv) (layout.Container, error) {
	var err error
	for _, f := range kvs {
		if c, err = c.With(f.name, f.v); err != nil {
			return c, err
		}
	}
	return c, nil
}

// FromLayer builds both words from a decoded gopacket layer.
func FromLayer(ip *layers.IPv4) (w0 layout.Container, w1 layout.Container, err error) {
	ecnField, _ := Word0.Field("ecn")
	ecn := ecnField.Enum().Total(uint128.From64(uint64(ip.TOS)))

	w0, err = withAll(Word0.New(),
		kv{"version", ip.Version},
		kv{"ihl", ip.IHL},
		kv{"dscp", ip.TOS >> 2},
		kv{"ecn", ecn},
		kv{"total_length", ip.Length},
	)
	if err != nil {
		return w0, w1, err
	}
	w1, err = withAll(Word1.New(),
		kv{"id", ip.Id},
		kv{"evil", ip.Flags&layers.IPv4EvilBit != 0},
		kv{"df", ip.Flags&layers.IPv4DontFragment != 0},
		kv{"mf", ip.Flags&layers.IPv4MoreFragments != 0},
		kv{"frag_offset", ip.FragOffset},
	)
	return w0, w1, err
}

// evilFlag is the reserved flag bit, x/net has no name for it.
const evilFlag netipv4.HeaderFlags = 1 << 2

// FromHeader builds both words from a golang.org/x/net/ipv4 header.
func FromHeader(h *netipv4.Header) (w0 layout.Container, w1 layout.Container, err error) {
	ecnField, _ := Word0.Field("ecn")
	ecn := ecnField.Enum().Total(uint128.From64(uint64(h.TOS)))

	w0, err = withAll(Word0.New(),
		kv{"version", h.Version},
		kv{"ihl", h.Len / 4},
		kv{"dscp", h.TOS >> 2},
		kv{"ecn", ecn},
		kv{"total_length", h.TotalLen},
	)
	if err != nil {
		return w0, w1, err
	}
	w1, err = withAll(Word1.New(),
		kv{"id", h.ID},
		kv{"evil", h.Flags&evilFlag != 0},
		kv{"df", h.Flags&netipv4.DontFragment != 0},
		kv{"mf", h.Flags&netipv4.MoreFragments != 0},
		kv{"frag_offset", h.FragOff},
	)
	return w0, w1, err
}

// ToHeader fills the fields of h covered by the two words.
func ToHeader(w0 layout.Container, w1 layout.Container, h *netipv4.Header) error {
	if w0.Layout() != Word0 || w1.Layout() != Word1 {
		return fmt.Errorf("expected %s and %s, got %s and %s", Word0.Name(), Word1.Name(), w0.Layout().Name(), w1.Layout().Name())
	}
	get := func(c layout.Container, name string) int { return int(c.MustGet(name).Uint64()) }

	h.Version = get(w0, "version")
	h.Len = get(w0, "ihl") * 4
	h.TOS = get(w0, "dscp")<<2 | get(w0, "ecn")
	h.TotalLen = get(w0, "total_length")
	h.ID = get(w1, "id")
	h.Flags = 0
	for _, f := range []struct {
		name string
		flag netipv4.HeaderFlags
	}{
		{"evil", evilFlag},
		{"df", netipv4.DontFragment},
		{"mf", netipv4.MoreFragments},
	} {
		if w1.MustGet(f.name).Bool() {
			h.Flags |= f.flag
		}
	}
	h.FragOff = get(w1, "frag_offset")
	return nil
}
