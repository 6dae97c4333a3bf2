package model

// Dialect selects the envelope protocol version. The two versions differ in
// how HTTP status codes map to faults and in whether GET may be used.
type Dialect int

const (
	SOAP11 Dialect = iota
	SOAP12
)

func (d Dialect) String() string {
	if d == SOAP12 {
		return "SOAP 1.2"
	}
	return "SOAP 1.1"
}
