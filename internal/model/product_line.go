package model

import "fmt"

// ProductLine identifies one of the two parallel production streams.
type ProductLine string

const (
	StreamA ProductLine = "stream_a"
	StreamB ProductLine = "stream_b"
)

// ProductLines lists every product line in a stable order.
var ProductLines = []ProductLine{StreamA, StreamB}

// Valid reports whether p is a known product line.
func (p ProductLine) Valid() bool {
	return p == StreamA || p == StreamB
}

// ParseProductLine converts raw input into a ProductLine.
func ParseProductLine(raw string) (ProductLine, error) {
	p := ProductLine(raw)
	if !p.Valid() {
		return "", fmt.Errorf("unknown product line %q", raw)
	}
	return p, nil
}
