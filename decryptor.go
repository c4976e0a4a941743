package voicesdk

import (
	"crypto/aes"
	"crypto/cipher"

	"go.uber.org/atomic"
)

// A Decryptor decrypts one transport packet. The packet is the full RTP
// datagram; headerLen marks the end of the unencrypted header. The
// returned slice must be a valid RTP packet (header plus plaintext body)
// and must not alias the input: it is retained until playout while the
// transport may reuse its read buffer.
type Decryptor interface {
	DecryptPacket(packet []byte, headerLen int) ([]byte, error)
}

// GCMDecryptor decrypts packet bodies with AES-256-GCM. The key may be
// rotated at any time with UpdateKey; rotation is safe concurrently with
// decryption.
type GCMDecryptor struct {
	cipherBlock atomic.Value
}

func NewGCMDecryptor(key []byte) (*GCMDecryptor, error) {
	if len(key) != keySizeBytes {
		return nil, ErrIncorrectKeyLength
	}
	cipherBlock, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	d := &GCMDecryptor{}
	d.cipherBlock.Store(cipherBlock)
	return d, nil
}

func (d *GCMDecryptor) UpdateKey(key []byte) error {
	if len(key) != keySizeBytes {
		return ErrIncorrectKeyLength
	}
	cipherBlock, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	d.cipherBlock.Store(cipherBlock)
	return nil
}

func (d *GCMDecryptor) DecryptPacket(packet []byte, headerLen int) ([]byte, error) {
	cipherBlock := d.cipherBlock.Load().(cipher.Block)
	return DecryptGCMVoicePacketCustomCipher(packet, headerLen, cipherBlock)
}

// CustomDecryptor adapts a plain function to the Decryptor interface, for
// protocols whose encryption scheme is negotiated out of band.
type CustomDecryptor struct {
	decryptionFunc func(packet []byte, headerLen int) ([]byte, error)
}

func NewCustomDecryptor(decryptionFunc func(packet []byte, headerLen int) ([]byte, error)) *CustomDecryptor {
	return &CustomDecryptor{decryptionFunc: decryptionFunc}
}

func (d *CustomDecryptor) DecryptPacket(packet []byte, headerLen int) ([]byte, error) {
	return d.decryptionFunc(packet, headerLen)
}
