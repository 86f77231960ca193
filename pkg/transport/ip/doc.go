// Package ip implements the TCP request/response and UDP publish/
// subscribe transports: TCP port 9001 serves one request per accepted
// read with no additional framing, and UDP port 9002 carries broadcast
// reports framed by pkg/stream.
package ip

// DefaultTCPPort is the request/response port.
const DefaultTCPPort = 9001

// DefaultUDPPort is the publish/subscribe port.
const DefaultUDPPort = 9002
