// Package ntp converts absolute times to and from the 64-bit NTP format
// carried by RTCP sender reports and by the ONVIF replay header extension.
package ntp

import (
	"math"
	"time"
)

// seconds between 1st January 1900 (NTP epoch) and 1st January 1970 (Unix epoch).
const unixOffset = 2208988800

// fraction of second is expressed in units of 1/2^32 s.
const fracUnit = 1 << 32

// Encode converts a time into a 64-bit NTP timestamp,
// as written into the replay extension of outgoing packets.
// Higher 32 bits are the seconds, lower 32 bits are the fraction of second.
// Specification: RFC5905, section 6
func Encode(t time.Time) uint64 {
	v := uint64(t.UnixNano()) + unixOffset*uint64(time.Second)
	secs := v / uint64(time.Second)
	frac := uint64(math.Round(float64((v%uint64(time.Second))*fracUnit) / float64(time.Second)))
	return secs<<32 | frac
}

// Decode converts a 64-bit NTP timestamp, read from a sender report
// or a replay extension, into a time in the local timezone.
// Specification: RFC5905, section 6
func Decode(v uint64) time.Time {
	secs := int64((v >> 32) - unixOffset)
	nanos := int64(math.Round(float64((v&0xFFFFFFFF)*uint64(time.Second)) / fracUnit))
	return time.Unix(secs, nanos)
}
