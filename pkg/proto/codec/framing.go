package codec

import (
	"bytes"
	"compress/zlib"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"io"
)

// Frame is one wire packet: its id and the raw payload that follows it.
type Frame struct {
	ID      int32
	Payload []byte
}

// Decoder reads length-prefixed frames off a byte stream, inflating
// compressed frames and decrypting once a shared secret is installed.
//
// Not safe for concurrent use; a connection has exactly one reader.
type Decoder struct {
	r         io.Reader
	threshold int
}

// NewDecoder returns a Decoder reading from r with compression disabled.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, threshold: -1}
}

// SetCompressionThreshold enables the compressed frame layout.
// A threshold of -1 forces uncompressed frames regardless of size.
func (d *Decoder) SetCompressionThreshold(threshold int) {
	d.threshold = threshold
}

// EnableEncryption wraps the underlying reader in an AES/CFB8 decrypting
// stream keyed and IV'd with secret. Irreversible; the cipher state is
// shared by every subsequent read.
func (d *Decoder) EnableEncryption(secret []byte) error {
	block, err := aes.NewCipher(secret)
	if err != nil {
		return fmt.Errorf("codec: enable decryption: %w", err)
	}
	d.r = &cipher.StreamReader{S: NewCFB8Decrypter(block, secret), R: d.r}
	return nil
}

// ReadFrame reads the next frame. A short read anywhere inside the frame is
// fatal to the stream.
func (d *Decoder) ReadFrame() (*Frame, error) {
	total, err := ReadVarInt(d.r)
	if err != nil {
		return nil, err
	}
	if total <= 0 {
		return nil, fmt.Errorf("codec: invalid frame length %d", total)
	}

	raw := make([]byte, total)
	if _, err := io.ReadFull(d.r, raw); err != nil {
		return nil, fmt.Errorf("codec: short frame read: %w", err)
	}

	if d.threshold >= 0 {
		buf := bytes.NewReader(raw)
		dataLen, err := ReadVarInt(buf)
		if err != nil {
			return nil, err
		}
		rest := raw[len(raw)-buf.Len():]
		if dataLen > 0 {
			zr, err := zlib.NewReader(bytes.NewReader(rest))
			if err != nil {
				return nil, fmt.Errorf("codec: zlib frame: %w", err)
			}
			defer zr.Close()
			inflated := make([]byte, dataLen)
			if _, err := io.ReadFull(zr, inflated); err != nil {
				return nil, fmt.Errorf("codec: zlib frame: %w", err)
			}
			raw = inflated
		} else {
			raw = rest
		}
	}

	body := bytes.NewReader(raw)
	id, err := ReadVarInt(body)
	if err != nil {
		return nil, err
	}
	return &Frame{ID: id, Payload: raw[len(raw)-body.Len():]}, nil
}

// Encoder writes frames onto a byte stream, compressing bodies above the
// negotiated threshold and encrypting once a shared secret is installed.
//
// Callers serialize access; a connection has exactly one writer at a time.
type Encoder struct {
	w         io.Writer
	threshold int
}

// NewEncoder returns an Encoder writing to w with compression disabled.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w, threshold: -1}
}

// SetCompressionThreshold enables the compressed frame layout for writes.
func (e *Encoder) SetCompressionThreshold(threshold int) {
	e.threshold = threshold
}

// EnableEncryption wraps the underlying writer in an AES/CFB8 encrypting
// stream keyed and IV'd with secret.
func (e *Encoder) EnableEncryption(secret []byte) error {
	block, err := aes.NewCipher(secret)
	if err != nil {
		return fmt.Errorf("codec: enable encryption: %w", err)
	}
	e.w = &cipher.StreamWriter{S: NewCFB8Encrypter(block, secret), W: e.w}
	return nil
}

// WriteFrame assembles (id, fragments...) into one frame and writes it.
func (e *Encoder) WriteFrame(id int32, fragments ...[]byte) error {
	body := make([]byte, 0, 64)
	var idBuf [5]byte
	body = append(body, idBuf[:PutVarInt(idBuf[:], id)]...)
	for _, frag := range fragments {
		body = append(body, frag...)
	}

	var frame bytes.Buffer
	if e.threshold >= 0 {
		var inner bytes.Buffer
		if len(body) >= e.threshold {
			if err := WriteVarInt(&inner, int32(len(body))); err != nil {
				return err
			}
			zw := zlib.NewWriter(&inner)
			if _, err := zw.Write(body); err != nil {
				return err
			}
			if err := zw.Close(); err != nil {
				return err
			}
		} else {
			if err := WriteVarInt(&inner, 0); err != nil {
				return err
			}
			inner.Write(body)
		}
		if err := WriteVarInt(&frame, int32(inner.Len())); err != nil {
			return err
		}
		frame.Write(inner.Bytes())
	} else {
		if err := WriteVarInt(&frame, int32(len(body))); err != nil {
			return err
		}
		frame.Write(body)
	}

	_, err := e.w.Write(frame.Bytes())
	return err
}
