// Package crc implements the CRC-32 used by PNG chunk trailers
// (ISO 3309 / ITU-T V.42, reflected polynomial 0xEDB88320).
package crc

// Polynomial is the reflected form of the CRC-32 generator polynomial.
const Polynomial = 0xEDB88320

var table = makeTable(Polynomial)

func makeTable(poly uint32) *[256]uint32 {
	var t [256]uint32
	for n := 0; n < 256; n++ {
		c := uint32(n)
		for k := 0; k < 8; k++ {
			if c&1 != 0 {
				c = poly ^ (c >> 1)
			} else {
				c >>= 1
			}
		}
		t[n] = c
	}
	return &t
}

// Update continues a running CRC over p. The register passed in and returned
// is the finalized value, so Update(Checksum(a), b) == Checksum(a ++ b).
func Update(crc uint32, p []byte) uint32 {
	c := ^crc
	for _, b := range p {
		c = table[byte(c)^b] ^ (c >> 8)
	}
	return ^c
}

// Checksum returns the CRC-32 of p.
func Checksum(p []byte) uint32 {
	return Update(0, p)
}

// Digest accumulates a CRC across several writes, e.g. a chunk's type
// code followed by its data.
type Digest struct {
	crc uint32
}

// Write never fails.
func (d *Digest) Write(p []byte) (int, error) {
	d.crc = Update(d.crc, p)
	return len(p), nil
}

// Sum32 returns the CRC of everything written so far.
func (d *Digest) Sum32() uint32 {
	return d.crc
}

// Reset clears the digest.
func (d *Digest) Reset() {
	d.crc = 0
}
