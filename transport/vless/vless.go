// Package vless implements the server side of the VLESS wire protocol:
// parsing the inbound request header, validating the shared UUID, and
// producing the response prefix: the server side of the header a VLESS
// client writes at the start of each connection.
package vless

import (
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/xvless/edge/transport/duplex"
)

const (
	// Version is the only protocol version this edge node understands.
	Version byte = 0

	// CommandTCP is the only supported VLESS command.
	CommandTCP byte = 1

	AtypIPv4   byte = 1
	AtypDomain byte = 2
	AtypIPv6   byte = 3
)

var (
	ErrInvalidUUID        = errors.New("vless: invalid uuid")
	ErrUnsupportedCommand = errors.New("vless: unsupported command")
	ErrUnknownAddressType = errors.New("vless: unknown address type")
	ErrEmptyHostname      = errors.New("vless: empty hostname")
)

// Request is the parsed outcome of a VLESS header.
type Request struct {
	Hostname string
	Port     uint16
	// Data is the payload already buffered past the header; may be empty.
	Data []byte
	// Resp is the 2-byte response prefix to emit once, first, to the client.
	Resp []byte
}

// ParseRequest reads a VLESS request header from r, authenticating against
// uuid. It reads in widening passes: first enough to see the addon
// length, then through the address-type byte, then through the full
// address payload, per the offsets in §4.B.
func ParseRequest(r duplex.ChunkReader, uuid [16]byte) (*Request, error) {
	buf, err := extendAtLeast(r, nil, 18)
	if err != nil {
		return nil, err
	}

	version := buf[0]
	if subtle.ConstantTimeCompare(buf[1:17], uuid[:]) != 1 {
		return nil, ErrInvalidUUID
	}
	pbLen := int(buf[17])

	atypeOffset := 21 + pbLen
	buf, err = extendAtLeast(r, buf, atypeOffset+1)
	if err != nil {
		return nil, err
	}

	cmd := buf[18+pbLen]
	if cmd != CommandTCP {
		return nil, ErrUnsupportedCommand
	}
	port := binary.BigEndian.Uint16(buf[19+pbLen : 21+pbLen])
	atype := buf[atypeOffset]

	var headerLen int
	var hostname string

	switch atype {
	case AtypIPv4:
		headerLen = atypeOffset + 1 + net.IPv4len
		buf, err = extendAtLeast(r, buf, headerLen)
		if err != nil {
			return nil, err
		}
		hostname = net.IP(buf[atypeOffset+1 : headerLen]).String()
	case AtypIPv6:
		headerLen = atypeOffset + 1 + net.IPv6len
		buf, err = extendAtLeast(r, buf, headerLen)
		if err != nil {
			return nil, err
		}
		hostname = RenderIPv6(buf[atypeOffset+1 : headerLen])
	case AtypDomain:
		lenOffset := atypeOffset + 1
		buf, err = extendAtLeast(r, buf, lenOffset+1)
		if err != nil {
			return nil, err
		}
		domainLen := int(buf[lenOffset])
		headerLen = lenOffset + 1 + domainLen
		buf, err = extendAtLeast(r, buf, headerLen)
		if err != nil {
			return nil, err
		}
		hostname = string(buf[lenOffset+1 : headerLen])
	default:
		return nil, ErrUnknownAddressType
	}

	if hostname == "" {
		return nil, ErrEmptyHostname
	}

	return &Request{
		Hostname: hostname,
		Port:     port,
		Data:     buf[headerLen:],
		Resp:     []byte{version, 0x00},
	}, nil
}

// RenderIPv6 formats 16 raw bytes as 8 colon-separated big-endian hex
// groups with leading zeros dropped and no "::" compression, matching the
// source protocol's textual form exactly (see design notes: implementations
// producing RFC-5952 canonical form would be observably different).
func RenderIPv6(b []byte) string {
	groups := make([]string, 8)
	for i := 0; i < 8; i++ {
		v := uint16(b[i*2])<<8 | uint16(b[i*2+1])
		groups[i] = strconv.FormatUint(uint64(v), 16)
	}
	return strings.Join(groups, ":")
}

// extendAtLeast grows buf by pulling further chunks from r until it holds
// at least n bytes, or fails with duplex.ErrShortRead if r is exhausted
// first. It is the widening-pass accumulator the header parser needs
// since r cannot be rewound between passes; duplex.ReadAtLeast is the
// single-pass variant, which the parser does not use.
func extendAtLeast(r duplex.ChunkReader, buf []byte, n int) ([]byte, error) {
	for len(buf) < n {
		chunk, err := r.ReadChunk()
		if len(chunk) > 0 {
			buf = duplex.Concat(buf, chunk)
		}
		if err != nil {
			if len(buf) >= n {
				break
			}
			return nil, duplex.ErrShortRead
		}
	}
	return buf, nil
}
