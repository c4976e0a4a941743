package voicesdk

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

const (
	keyDerivationSalt = "VoiceMediaKey"
	pbkdfIterations   = 100000
	keySizeBytes      = 32
	hkdfInfoBytes     = 128

	// Encrypted packets carry a 32-bit nonce counter appended after the
	// ciphertext; it is expanded to the full GCM nonce size with zeros.
	nonceTrailerBytes = 4
	gcmNonceBytes     = 12
)

// DeriveKeyFromString derives a media key from a password using PBKDF2
// with the package's default salt.
func DeriveKeyFromString(password string) ([]byte, error) {
	return DeriveKeyFromStringCustomSalt(password, keyDerivationSalt)
}

func DeriveKeyFromStringCustomSalt(password, salt string) ([]byte, error) {
	if password == "" {
		return nil, ErrIncorrectSecretLength
	}
	if salt == "" {
		return nil, ErrIncorrectSaltLength
	}
	return pbkdf2.Key([]byte(password), []byte(salt), pbkdfIterations, keySizeBytes, sha256.New), nil
}

// DeriveKeyFromBytes derives a media key from shared secret bytes using
// HKDF with the package's default salt.
func DeriveKeyFromBytes(secret []byte) ([]byte, error) {
	return DeriveKeyFromBytesCustomSalt(secret, keyDerivationSalt)
}

func DeriveKeyFromBytesCustomSalt(secret []byte, salt string) ([]byte, error) {
	if secret == nil {
		return nil, ErrIncorrectSecretLength
	}
	if salt == "" {
		return nil, ErrIncorrectSaltLength
	}

	info := make([]byte, hkdfInfoBytes)
	hkdfReader := hkdf.New(sha256.New, secret, []byte(salt), info)

	key := make([]byte, keySizeBytes)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// DecryptGCMVoicePacket decrypts the body of one transport packet with
// AES-256-GCM. Use DecryptGCMVoicePacketCustomCipher with a cached cipher
// block when decrypting per-packet.
//
// Packet layout:
//
//	----------+------------+--------------
//	RTP header|ciphertext  |nonce counter|
//	----------+------------+--------------
//
// The RTP header (headerLen bytes) is unencrypted and authenticated as
// additional data. The nonce counter is 4 bytes, expanded to the 12-byte
// GCM nonce with zeros. The returned slice is the full packet with the
// body replaced by plaintext and the trailer removed.
func DecryptGCMVoicePacket(packet []byte, headerLen int, key []byte) ([]byte, error) {
	if len(key) != keySizeBytes {
		return nil, ErrIncorrectKeyLength
	}
	cipherBlock, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return DecryptGCMVoicePacketCustomCipher(packet, headerLen, cipherBlock)
}

func DecryptGCMVoicePacketCustomCipher(packet []byte, headerLen int, cipherBlock cipher.Block) ([]byte, error) {
	if cipherBlock == nil {
		return nil, ErrBlockCipherRequired
	}
	if headerLen < 0 || len(packet) < headerLen+nonceTrailerBytes {
		return nil, ErrIncorrectNonceLength
	}

	header := packet[:headerLen]
	cipherText := packet[headerLen : len(packet)-nonceTrailerBytes]

	nonce := make([]byte, gcmNonceBytes)
	copy(nonce, packet[len(packet)-nonceTrailerBytes:])

	aesGCM, err := cipher.NewGCM(cipherBlock)
	if err != nil {
		return nil, err
	}
	plainText, err := aesGCM.Open(nil, nonce, cipherText, header)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(header)+len(plainText))
	copy(out, header)
	copy(out[len(header):], plainText)
	return out, nil
}

// EncryptGCMVoicePacket is the inverse of DecryptGCMVoicePacket: it seals
// the packet body after headerLen with AES-256-GCM, authenticating the
// header, and appends the nonce counter.
func EncryptGCMVoicePacket(packet []byte, headerLen int, key []byte, nonceCounter uint32) ([]byte, error) {
	if len(key) != keySizeBytes {
		return nil, ErrIncorrectKeyLength
	}
	cipherBlock, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return EncryptGCMVoicePacketCustomCipher(packet, headerLen, cipherBlock, nonceCounter)
}

func EncryptGCMVoicePacketCustomCipher(packet []byte, headerLen int, cipherBlock cipher.Block, nonceCounter uint32) ([]byte, error) {
	if cipherBlock == nil {
		return nil, ErrBlockCipherRequired
	}
	if headerLen < 0 || len(packet) < headerLen {
		return nil, ErrIncorrectNonceLength
	}

	header := packet[:headerLen]
	body := packet[headerLen:]

	trailer := make([]byte, nonceTrailerBytes)
	binary.BigEndian.PutUint32(trailer, nonceCounter)
	nonce := make([]byte, gcmNonceBytes)
	copy(nonce, trailer)

	aesGCM, err := cipher.NewGCM(cipherBlock)
	if err != nil {
		return nil, err
	}
	cipherText := aesGCM.Seal(nil, nonce, body, header)

	out := make([]byte, 0, len(header)+len(cipherText)+nonceTrailerBytes)
	out = append(out, header...)
	out = append(out, cipherText...)
	out = append(out, trailer...)
	return out, nil
}
