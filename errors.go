package voicesdk

import "errors"

var (
	ErrReceiverClosed        = errors.New("receiver is closed")
	ErrInvalidPacket         = errors.New("packet is not valid RTP")
	ErrDecryptionFailed      = errors.New("could not decrypt packet body")
	ErrIncorrectKeyLength    = errors.New("incorrect key length for decryption")
	ErrIncorrectNonceLength  = errors.New("packet too short to carry a nonce")
	ErrIncorrectSecretLength = errors.New("input secret provided to derivation function cannot be empty or nil")
	ErrIncorrectSaltLength   = errors.New("input salt provided to derivation function cannot be empty or nil")
	ErrBlockCipherRequired   = errors.New("input block cipher cannot be nil")
)
