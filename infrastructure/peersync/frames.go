// Package peersync implements the peer-to-peer synchronization engine
// (§4.9): the initiator and responder state machines that exchange
// indexes and stream encrypted file content over a single established
// connection, one request per stream.
package peersync

import (
	"fmt"
	"io"

	"duet/application"
	"duet/domain/errkind"
	"duet/infrastructure/cryptography/framecrypto"
)

// CiphertextLength computes the total on-wire byte count for a file of
// plaintextLen bytes, per §4.9: plaintextLen plus one frame's worth of
// overhead (nonce+tag) for every frame the content is split into
// (ceil(plaintextLen / FrameSize)), with zero frames — and zero bytes — for
// an empty file.
func CiphertextLength(plaintextLen uint64) uint64 {
	if plaintextLen == 0 {
		return 0
	}
	frames := (plaintextLen + framecrypto.FrameSize - 1) / framecrypto.FrameSize
	overheadPerFrame := uint64(framecrypto.EncryptedFrameSize - framecrypto.FrameSize)
	return plaintextLen + frames*overheadPerFrame
}

// WriteFrames reads plaintextLen bytes from src, encrypting each
// FrameSize-sized chunk into a full frame written to dst.
func WriteFrames(dst io.Writer, cipher application.FrameCipher, src io.Reader, plaintextLen uint64) error {
	plain := make([]byte, cipher.FrameSize())
	encrypted := make([]byte, cipher.FrameSize()+cipher.Overhead())

	remaining := plaintextLen
	for remaining > 0 {
		chunk := uint64(cipher.FrameSize())
		if remaining < chunk {
			chunk = remaining
		}
		if _, err := io.ReadFull(src, plain[:chunk]); err != nil {
			return fmt.Errorf("%w: %v", errkind.ErrRead, err)
		}
		n, err := cipher.Encrypt(encrypted, plain[:chunk])
		if err != nil {
			return fmt.Errorf("%w: %v", errkind.ErrEncryption, err)
		}
		if _, err := dst.Write(encrypted[:n]); err != nil {
			return fmt.Errorf("%w: %v", errkind.ErrWrite, err)
		}
		remaining -= chunk
	}
	return nil
}

// ReadFrames reads ciphertextLen bytes of frames from src, decrypting each
// into dst.
func ReadFrames(dst io.Writer, cipher application.FrameCipher, src io.Reader, ciphertextLen uint64) error {
	frame := make([]byte, framecrypto.EncryptedFrameSize)
	plain := make([]byte, cipher.FrameSize())

	remaining := ciphertextLen
	for remaining > 0 {
		frameLen := uint64(framecrypto.EncryptedFrameSize)
		if remaining < frameLen {
			frameLen = remaining
		}
		if frameLen < framecrypto.MinEncryptedFrameSize {
			return errkind.ErrFrameTooShort
		}
		if _, err := io.ReadFull(src, frame[:frameLen]); err != nil {
			if err == io.ErrUnexpectedEOF || err == io.EOF {
				return errkind.ErrUnexpectedEOF
			}
			return fmt.Errorf("%w: %v", errkind.ErrRead, err)
		}
		n, err := cipher.Decrypt(plain, frame[:frameLen])
		if err != nil {
			return err
		}
		if _, err := dst.Write(plain[:n]); err != nil {
			return fmt.Errorf("%w: %v", errkind.ErrWrite, err)
		}
		remaining -= frameLen
	}
	return nil
}
