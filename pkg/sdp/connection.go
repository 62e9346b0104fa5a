package sdp

import (
	"fmt"
	"strconv"
	"strings"

	psdp "github.com/pion/sdp/v3"
)

// Connection is a connection line (c=).
// It is implemented by *ConnectionIP4, *ConnectionIP6 and *ConnectionUnknown.
type Connection interface {
	// Address returns the host part of the connection address.
	Address() string

	// AddressCount returns the number of contiguous multicast addresses.
	AddressCount() int

	toPion() *psdp.ConnectionInformation
}

func addressCount(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// ConnectionIP4 is an IPv4 connection.
type ConnectionIP4 struct {
	Host string

	// multicast time to live (optional).
	TTL *int

	// number of contiguous multicast addresses. It defaults to 1.
	NumberOfAddresses int
}

// Address implements Connection.
func (c *ConnectionIP4) Address() string {
	return c.Host
}

// AddressCount implements Connection.
func (c *ConnectionIP4) AddressCount() int {
	return addressCount(c.NumberOfAddresses)
}

func (c *ConnectionIP4) toPion() *psdp.ConnectionInformation {
	addr := &psdp.Address{Address: c.Host}
	if c.TTL != nil {
		ttl := *c.TTL
		addr.TTL = &ttl
		if n := c.AddressCount(); n > 1 {
			addr.Range = &n
		}
	}

	return &psdp.ConnectionInformation{
		NetworkType: "IN",
		AddressType: "IP4",
		Address:     addr,
	}
}

// ConnectionIP6 is an IPv6 connection.
type ConnectionIP6 struct {
	Host string

	// number of contiguous multicast addresses. It defaults to 1.
	NumberOfAddresses int
}

// Address implements Connection.
func (c *ConnectionIP6) Address() string {
	return c.Host
}

// AddressCount implements Connection.
func (c *ConnectionIP6) AddressCount() int {
	return addressCount(c.NumberOfAddresses)
}

func (c *ConnectionIP6) toPion() *psdp.ConnectionInformation {
	addr := &psdp.Address{Address: c.Host}
	if n := c.AddressCount(); n > 1 {
		addr.Range = &n
	}

	return &psdp.ConnectionInformation{
		NetworkType: "IN",
		AddressType: "IP6",
		Address:     addr,
	}
}

// ConnectionUnknown is a connection with an unknown network or address type.
type ConnectionUnknown struct {
	NetworkType string
	AddressType string
	Host        string
}

// Address implements Connection.
func (c *ConnectionUnknown) Address() string {
	return c.Host
}

// AddressCount implements Connection.
func (c *ConnectionUnknown) AddressCount() int {
	return 1
}

func (c *ConnectionUnknown) toPion() *psdp.ConnectionInformation {
	return &psdp.ConnectionInformation{
		NetworkType: c.NetworkType,
		AddressType: c.AddressType,
		Address:     &psdp.Address{Address: c.Host},
	}
}

func parseSuffixNumber(v string, lowest int, highest int) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w `%v`", errInvalidNumericValue, v)
	}
	if n < lowest || n > highest {
		return 0, fmt.Errorf("%w -- out of range `%v`", errInvalidValue, v)
	}
	return n, nil
}

// unmarshalConnection decodes a connection. When strict is false, an invalid
// address suffix is ignored and defaults are used; the returned error is then
// non-nil only to be reported.
func unmarshalConnection(value string, strict bool) (Connection, error) {
	fields := strings.Fields(value)

	if len(fields) != 3 {
		if strict || len(fields) < 3 {
			return nil, fmt.Errorf("%w: expected 3 fields, got %d", errInvalidSyntax, len(fields))
		}
		fields = fields[:3]
	}

	networkType, addressType, addr := fields[0], fields[1], fields[2]

	if !strings.EqualFold(networkType, "IN") {
		return &ConnectionUnknown{
			NetworkType: networkType,
			AddressType: addressType,
			Host:        addr,
		}, nil
	}

	parts := strings.Split(addr, "/")

	addressType = strings.ToUpper(addressType)

	// some cameras use IPV4 instead of IP4
	if addressType == "IPV4" {
		addressType = "IP4"
	}

	switch addressType {
	case "IP4":
		c := &ConnectionIP4{
			Host:              parts[0],
			NumberOfAddresses: 1,
		}

		var suffixErr error

		switch {
		case len(parts) > 3:
			suffixErr = fmt.Errorf("%w: too many address suffixes `%v`", errInvalidSyntax, addr)

		case len(parts) >= 2:
			ttl, err := parseSuffixNumber(parts[1], 0, 255)
			if err != nil {
				suffixErr = err
				break
			}

			count := 1
			if len(parts) == 3 {
				count, err = parseSuffixNumber(parts[2], 1, 1<<16)
				if err != nil {
					suffixErr = err
					break
				}
			}

			c.TTL = &ttl
			c.NumberOfAddresses = count
		}

		if suffixErr != nil && strict {
			return nil, suffixErr
		}
		return c, suffixErr

	case "IP6":
		c := &ConnectionIP6{
			Host:              parts[0],
			NumberOfAddresses: 1,
		}

		var suffixErr error

		switch {
		case len(parts) > 2:
			suffixErr = fmt.Errorf("%w: too many address suffixes `%v`", errInvalidSyntax, addr)

		case len(parts) == 2:
			count, err := parseSuffixNumber(parts[1], 1, 1<<16)
			if err != nil {
				suffixErr = err
				break
			}
			c.NumberOfAddresses = count
		}

		if suffixErr != nil && strict {
			return nil, suffixErr
		}
		return c, suffixErr
	}

	return &ConnectionUnknown{
		NetworkType: networkType,
		AddressType: fields[1],
		Host:        addr,
	}, nil
}
