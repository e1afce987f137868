package codec

import "crypto/cipher"

// cfb8 implements AES CFB mode with an 8-bit shift register, the stream
// cipher protocol 47 negotiates at login. The IV equals the key and the
// register state carries across every read and write on the connection.
type cfb8 struct {
	block     cipher.Block
	register  []byte
	temp      []byte
	blockSize int
	decrypt   bool
}

var _ cipher.Stream = (*cfb8)(nil)

func newCFB8(block cipher.Block, iv []byte, decrypt bool) *cfb8 {
	register := make([]byte, len(iv))
	copy(register, iv)
	return &cfb8{
		block:     block,
		register:  register,
		temp:      make([]byte, block.BlockSize()),
		blockSize: block.BlockSize(),
		decrypt:   decrypt,
	}
}

// NewCFB8Encrypter returns the encrypting half of a CFB8 stream.
func NewCFB8Encrypter(block cipher.Block, iv []byte) cipher.Stream {
	return newCFB8(block, iv, false)
}

// NewCFB8Decrypter returns the decrypting half of a CFB8 stream.
func NewCFB8Decrypter(block cipher.Block, iv []byte) cipher.Stream {
	return newCFB8(block, iv, true)
}

func (c *cfb8) XORKeyStream(dst, src []byte) {
	for i := range src {
		in := src[i] // dst may alias src
		copy(c.temp, c.register)
		c.block.Encrypt(c.register, c.register)
		out := in ^ c.register[0]
		dst[i] = out

		copy(c.register, c.temp[1:])
		if c.decrypt {
			c.register[c.blockSize-1] = in
		} else {
			c.register[c.blockSize-1] = out
		}
	}
}
