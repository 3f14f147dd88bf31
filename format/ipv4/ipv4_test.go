package ipv4_test

import (
	"net"
	"runtime"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/wader/bitlayout/format"
	"github.com/wader/bitlayout/format/ipv4"
	netipv4 "golang.org/x/net/ipv4"
)

func serialize(t *testing.T, ip *layers.IPv4) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ip, gopacket.Payload([]byte("hello"))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	testCases := []struct {
		name string
		ip   layers.IPv4
		ecn  string
	}{
		{
			name: "df",
			ip:   layers.IPv4{Version: 4, TOS: 0xB8, Id: 0x1234, Flags: layers.IPv4DontFragment, TTL: 64, Protocol: layers.IPProtocolUDP},
			ecn:  "not_ect",
		},
		{
			name: "fragment",
			ip:   layers.IPv4{Version: 4, TOS: 0x03, Id: 0xFFFF, Flags: layers.IPv4MoreFragments, FragOffset: 0x1ABC, TTL: 1, Protocol: layers.IPProtocolTCP},
			ecn:  "ce",
		},
		{
			name: "evil",
			ip:   layers.IPv4{Version: 4, TOS: 0x02, Flags: layers.IPv4EvilBit, TTL: 255, Protocol: layers.IPProtocolICMPv4},
			ecn:  "ect0",
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tc.ip.SrcIP = net.IP{10, 0, 0, 1}
			tc.ip.DstIP = net.IP{10, 0, 0, 2}
			b := serialize(t, &tc.ip)

			w0, w1, err := ipv4.Decode(b)
			if err != nil {
				t.Fatal(err)
			}
			if got := w0.MustGet("version").Uint64(); got != 4 {
				t.Errorf("version %d", got)
			}
			if got := w0.MustGet("ihl").Uint64(); got != 5 {
				t.Errorf("ihl %d", got)
			}
			if got := w0.MustGet("dscp").Uint64(); got != uint64(tc.ip.TOS>>2) {
				t.Errorf("dscp %d", got)
			}
			if got := w0.MustGet("ecn").Sym; got != tc.ecn {
				t.Errorf("ecn %s want %s", got, tc.ecn)
			}
			if got := w0.MustGet("total_length").Uint64(); got != uint64(len(b)) {
				t.Errorf("total_length %d want %d", got, len(b))
			}
			if got := w1.MustGet("id").Uint64(); got != uint64(tc.ip.Id) {
				t.Errorf("id %#x", got)
			}
			if got := w1.MustGet("df").Bool(); got != (tc.ip.Flags&layers.IPv4DontFragment != 0) {
				t.Errorf("df %v", got)
			}
			if got := w1.MustGet("mf").Bool(); got != (tc.ip.Flags&layers.IPv4MoreFragments != 0) {
				t.Errorf("mf %v", got)
			}
			if got := w1.MustGet("evil").Bool(); got != (tc.ip.Flags&layers.IPv4EvilBit != 0) {
				t.Errorf("evil %v", got)
			}
			if got := w1.MustGet("frag_offset").Uint64(); got != uint64(tc.ip.FragOffset) {
				t.Errorf("frag_offset %#x", got)
			}

			p := gopacket.NewPacket(b, layers.LayerTypeIPv4, gopacket.Default)
			ip, ok := p.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
			if !ok {
				t.Fatal("no ipv4 layer")
			}
			l0, l1, err := ipv4.FromLayer(ip)
			if err != nil {
				t.Fatal(err)
			}
			if !l0.Equal(w0) || !l1.Equal(w1) {
				t.Fatalf("FromLayer %s %s, Decode %s %s", l0, l1, w0, w1)
			}

			// x/net parses raw socket byte order, same as the wire on linux
			if runtime.GOOS != "linux" {
				return
			}
			h, err := netipv4.ParseHeader(b)
			if err != nil {
				t.Fatal(err)
			}
			h0, h1, err := ipv4.FromHeader(h)
			if err != nil {
				t.Fatal(err)
			}
			if !h0.Equal(w0) || !h1.Equal(w1) {
				t.Fatalf("FromHeader %s %s, Decode %s %s", h0, h1, w0, w1)
			}
		})
	}
}

func TestHeader(t *testing.T) {
	h := &netipv4.Header{
		Version:  4,
		Len:      netipv4.HeaderLen,
		TOS:      0xB9,
		TotalLen: 1500,
		ID:       0xBEEF,
		Flags:    netipv4.DontFragment | 1<<2,
		FragOff:  0x123,
		TTL:      64,
		Protocol: 17,
		Src:      net.IP{10, 0, 0, 1},
		Dst:      net.IP{10, 0, 0, 2},
	}
	w0, w1, err := ipv4.FromHeader(h)
	if err != nil {
		t.Fatal(err)
	}
	testCases := []struct {
		name string
		got  string
		want string
	}{
		{"version", w0.MustGet("version").String(), "4"},
		{"ihl", w0.MustGet("ihl").String(), "5"},
		{"dscp", w0.MustGet("dscp").String(), "46"},
		{"ecn", w0.MustGet("ecn").String(), "ect1"},
		{"total_length", w0.MustGet("total_length").String(), "1500"},
		{"id", w1.MustGet("id").String(), "48879"},
		{"evil", w1.MustGet("evil").String(), "true"},
		{"df", w1.MustGet("df").String(), "true"},
		{"mf", w1.MustGet("mf").String(), "false"},
		{"frag_offset", w1.MustGet("frag_offset").String(), "291"},
	}
	for _, tc := range testCases {
		if tc.got != tc.want {
			t.Errorf("%s: got %s want %s", tc.name, tc.got, tc.want)
		}
	}

	b, err := h.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	p, err := netipv4.ParseHeader(b)
	if err != nil {
		t.Fatal(err)
	}
	p0, p1, err := ipv4.FromHeader(p)
	if err != nil {
		t.Fatal(err)
	}
	if !p0.Equal(w0) || !p1.Equal(w1) {
		t.Fatalf("parsed %s %s, want %s %s", p0, p1, w0, w1)
	}
	if runtime.GOOS == "linux" {
		d0, d1, err := ipv4.Decode(b)
		if err != nil {
			t.Fatal(err)
		}
		if !d0.Equal(w0) || !d1.Equal(w1) {
			t.Fatalf("Decode %s %s, want %s %s", d0, d1, w0, w1)
		}
	}

	var back netipv4.Header
	if err := ipv4.ToHeader(w0, w1, &back); err != nil {
		t.Fatal(err)
	}
	if back.Version != h.Version || back.Len != h.Len || back.TOS != h.TOS || back.TotalLen != h.TotalLen ||
		back.ID != h.ID || back.Flags != h.Flags || back.FragOff != h.FragOff {
		t.Fatalf("got %s want %s", &back, h)
	}
	if err := ipv4.ToHeader(w1, w0, &back); err == nil {
		t.Fatal("expected error for swapped words")
	}
}

func TestDecodeShort(t *testing.T) {
	if _, _, err := ipv4.Decode([]byte{0x45, 0}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRegistered(t *testing.T) {
	for _, name := range []string{"ipv4_word0", "ipv4_word1"} {
		l, err := format.Layout(name)
		if err != nil {
			t.Fatal(err)
		}
		if l.Width() != 32 {
			t.Errorf("%s width %d", name, l.Width())
		}
		if !l.Reserved().IsZero() {
			t.Errorf("%s has reserved bits %s", name, l.Reserved())
		}
	}
}
