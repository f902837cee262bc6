package anonymize

import "crypto/aes"

// cryptoPAN implements the prefix-preserving pseudonymization algorithm the
// original plugin links against (Crypto-PAn, Fan et al. 2002): no library in
// the example pack, nor the wider Go ecosystem, ships a maintained Crypto-PAn
// implementation, and the original collector itself vendors a hand-written
// one rather than pulling it from a dependency — so this is built directly
// on stdlib crypto/aes, the same primitive the original's Rijndael
// implementation provides.
//
// For each bit position i of the address, in order, it encrypts a 128-bit
// block built from the address's own first i bits followed by a fixed
// pseudorandom pad, and XORs the address's bit i with the block's first
// output bit. Because position i's block only ever depends on bits [0,i) of
// the original address, two addresses sharing an n-bit prefix always
// anonymize to two addresses sharing the same n-bit prefix.
type cryptoPAN struct {
	cipher [16]byte
	pad    [16]byte
}

func newCryptoPAN(key []byte) (*cryptoPAN, error) {
	keyBlock := deriveKey(key)
	block, err := aes.NewCipher(keyBlock[:])
	if err != nil {
		return nil, err
	}
	var zero, pad [16]byte
	block.Encrypt(pad[:], zero[:])
	return &cryptoPAN{cipher: keyBlock, pad: pad}, nil
}

// deriveKey stretches or truncates an arbitrary-length key to AES-128's
// 16-byte key size, matching the original's use of a single passphrase for
// both the cipher key and the pad derivation.
func deriveKey(key []byte) [16]byte {
	var out [16]byte
	if len(key) == 0 {
		return out
	}
	for i := range out {
		out[i] = key[i%len(key)]
	}
	return out
}

func getBit(b []byte, pos int) byte {
	byteIdx := pos / 8
	bitIdx := 7 - uint(pos%8)
	if byteIdx >= len(b) {
		return 0
	}
	return (b[byteIdx] >> bitIdx) & 1
}

func setBit(b []byte, pos int, v byte) {
	byteIdx := pos / 8
	bitIdx := 7 - uint(pos%8)
	if v == 1 {
		b[byteIdx] |= 1 << bitIdx
	} else {
		b[byteIdx] &^= 1 << bitIdx
	}
}

// anonymize runs the bit-by-bit Crypto-PAn loop over addr's first nbits
// bits (32 for IPv4, 128 for IPv6) and returns a new, same-length address.
func (c *cryptoPAN) anonymize(addr []byte, nbits int) []byte {
	block, _ := aes.NewCipher(c.cipher[:])
	out := make([]byte, len(addr))
	copy(out, addr)

	var ext, enc [16]byte
	for pos := 0; pos < nbits; pos++ {
		for i := 0; i < 128; i++ {
			var bit byte
			if i < pos {
				bit = getBit(addr, i)
			} else {
				bit = getBit(c.pad[:], i)
			}
			setBit(ext[:], i, bit)
		}
		block.Encrypt(enc[:], ext[:])
		flip := getBit(enc[:], 0)
		setBit(out, pos, getBit(addr, pos)^flip)
	}
	return out
}
