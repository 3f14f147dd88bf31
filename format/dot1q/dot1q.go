// Package dot1q registers the 802.1Q VLAN tag control information word.
package dot1q

import (
	_ "embed"

	"github.com/gopacket/gopacket/layers"
	"github.com/wader/bitlayout/format"
	"github.com/wader/bitlayout/pkg/layout"
	"lukechampine.com/uint128"
)

//go:embed dot1q_tci.yml
var tciYAML []byte

var TCI *layout.Layout

func init() {
	TCI = format.MustRegisterYAML(tciYAML)
}

func FromLayer(d *layers.Dot1Q) (layout.Container, error) {
	pcp, _ := TCI.Field("pcp")
	c, err := TCI.New().With("pcp", pcp.Enum().Total(uint128.From64(uint64(d.Priority))))
	if err != nil {
		return c, err
	}
	if c, err = c.With("dei", d.DropEligible); err != nil {
		return c, err
	}
	return c.With("vid", d.VLANIdentifier)
}

// ToLayer sets the tag fields of d from c, other layer fields are kept.
func ToLayer(c layout.Container, d *layers.Dot1Q) error {
	pcp, err := c.Get("pcp")
	if err != nil {
		return err
	}
	dei, err := c.Get("dei")
	if err != nil {
		return err
	}
	vid, err := c.Get("vid")
	if err != nil {
		return err
	}
	d.Priority = uint8(pcp.Uint64())
	d.DropEligible = dei.Bool()
	d.VLANIdentifier = uint16(vid.Uint64())
	return nil
}
