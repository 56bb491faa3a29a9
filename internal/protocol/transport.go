package protocol

// Transport selects the socket family a game relay binds.
type Transport string

const (
	TransportTCP Transport = "tcp"
	TransportUDP Transport = "udp"
)

// ParseTransport maps a query-string value onto a transport. Anything other
// than the exact string "udp" selects TCP.
func ParseTransport(s string) Transport {
	if s == string(TransportUDP) {
		return TransportUDP
	}
	return TransportTCP
}

func (t Transport) String() string {
	return string(t)
}
