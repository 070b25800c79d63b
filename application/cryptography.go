package application

// FrameCipher encrypts and decrypts fixed-size file frames in place over a
// caller-supplied scratch buffer, per §4.3. Encrypt takes at most
// FrameSize() bytes of plaintext; a frame passed to Decrypt is at most
// FrameSize()+Overhead() bytes.
type FrameCipher interface {
	// Encrypt seals plaintext (at most FrameSize() bytes) into dst, writing
	// nonce‖ciphertext‖tag. dst must be len(plaintext)+Overhead() bytes.
	// Returns the number of bytes written to dst.
	Encrypt(dst, plaintext []byte) (int, error)

	// Decrypt opens a frame of nonce‖ciphertext‖tag into dst, returning the
	// number of plaintext bytes written. Fails with errkind.ErrDecryption
	// on tag mismatch and errkind.ErrFrameTooShort if frame is too small.
	Decrypt(dst, frame []byte) (int, error)

	// FrameSize is the maximum plaintext bytes per frame (65536).
	FrameSize() int

	// Overhead is bytes added per frame beyond the plaintext (nonce + tag).
	Overhead() int
}

// Envelope encrypts a single non-streaming payload (e.g. an Index blob) as
// nonce‖ciphertext, per the Encrypted<T> data model.
type Envelope interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}
