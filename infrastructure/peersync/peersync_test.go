package peersync

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"duet/application"
	"duet/domain/identity"
	"duet/domain/index"
	"duet/infrastructure/cryptography/framecrypto"
	"duet/infrastructure/cryptography/sealedbox"
	"duet/infrastructure/logging"
)

// fakeConn pairs a client-side application.Connection with a responder-side
// one over in-memory net.Pipe streams, mirroring the rendezvous package's
// test double.
type fakeConn struct {
	peerKey  identity.PublicKey
	remote   net.Addr
	incoming chan net.Conn
	outgoing chan net.Conn
}

func newFakeConnPair(peerKey identity.PublicKey) (initiator, responder *fakeConn) {
	toResponder := make(chan net.Conn, 16)
	toInitiator := make(chan net.Conn, 16)
	initiator = &fakeConn{peerKey: peerKey, incoming: toInitiator, outgoing: toResponder}
	responder = &fakeConn{incoming: toResponder, outgoing: toInitiator}
	return initiator, responder
}

func (f *fakeConn) OpenStream(ctx context.Context) (application.Stream, error) {
	a, b := net.Pipe()
	f.outgoing <- b
	return a, nil
}

func (f *fakeConn) AcceptStream(ctx context.Context) (application.Stream, error) {
	select {
	case conn := <-f.incoming:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeConn) PeerKey() identity.PublicKey { return f.peerKey }
func (f *fakeConn) RemoteAddr() net.Addr        { return f.remote }
func (f *fakeConn) Close() error                { return nil }

// mustOwnCipher builds the cipher/box pair standing in for one device's own
// identity-derived key material (§4.3): the same device uses this key both
// when it pushes its files to a peer and when it later pulls them back.
func mustOwnCipher(t *testing.T) (*framecrypto.Cipher, *sealedbox.Box) {
	t.Helper()
	var key [32]byte
	copy(key[:], []byte("0123456789abcdef0123456789abcdef"))
	cipher, err := framecrypto.New(key[:])
	if err != nil {
		t.Fatalf("framecrypto.New: %v", err)
	}
	box, err := sealedbox.New(key)
	if err != nil {
		t.Fatalf("sealedbox.New: %v", err)
	}
	return cipher, box
}

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

// writeEncryptedFile seeds root/name with the ciphertext frames that
// plaintext would have produced under cipher, standing in for "a file this
// device previously pushed to its peer" — the peer never sees the
// plaintext, only ever these frames.
func writeEncryptedFile(t *testing.T, cipher *framecrypto.Cipher, root, name, plaintext string) {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteFrames(&buf, cipher, strings.NewReader(plaintext), uint64(len(plaintext))); err != nil {
		t.Fatalf("WriteFrames: %v", err)
	}
	path := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestSyncToPushesEncryptedFileToPeer(t *testing.T) {
	localRoot := t.TempDir()
	remoteRoot := t.TempDir()
	const plaintext = "hello from local"
	writeFile(t, localRoot, "notes.txt", plaintext)

	local, err := NewDirStorage(localRoot)
	if err != nil {
		t.Fatalf("NewDirStorage(local): %v", err)
	}
	remote, err := NewDirStorage(remoteRoot)
	if err != nil {
		t.Fatalf("NewDirStorage(remote): %v", err)
	}

	cipher, box := mustOwnCipher(t)
	responder := NewResponder(remote, logging.NewNop())
	engine := NewEngine(local, cipher, box, logging.NewNop())

	peerKey, err := identity.Generate()
	if err != nil {
		t.Fatalf("identity.Generate: %v", err)
	}
	initiatorConn, responderConn := newFakeConnPair(peerKey.Public)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go responder.Serve(ctx, responderConn)

	if err := engine.SyncTo(ctx, initiatorConn); err != nil {
		t.Fatalf("SyncTo: %v", err)
	}

	stored, err := os.ReadFile(filepath.Join(remoteRoot, index.HashedPath("notes.txt")))
	if err != nil {
		t.Fatalf("expected pushed file to exist under its hashed name: %v", err)
	}
	if bytes.Contains(stored, []byte(plaintext)) {
		t.Fatalf("stored file on peer contains plaintext, peer must only ever see ciphertext")
	}
	wantLen := CiphertextLength(uint64(len(plaintext)))
	if uint64(len(stored)) != wantLen {
		t.Fatalf("stored ciphertext length = %d, want %d", len(stored), wantLen)
	}

	var decoded bytes.Buffer
	if err := ReadFrames(&decoded, cipher, bytes.NewReader(stored), uint64(len(stored))); err != nil {
		t.Fatalf("ReadFrames on stored ciphertext: %v", err)
	}
	if decoded.String() != plaintext {
		t.Fatalf("decrypted stored content = %q, want %q", decoded.String(), plaintext)
	}

	blob, err := remote.IndexBlob()
	if err != nil {
		t.Fatalf("expected index blob to be persisted on peer: %v", err)
	}
	blob.Close()
}

func TestSyncFromPullsAndDecryptsOwnFileFromPeer(t *testing.T) {
	localRoot := t.TempDir()
	remoteRoot := t.TempDir()
	const plaintext = "binary-ish content"

	local, err := NewDirStorage(localRoot)
	if err != nil {
		t.Fatalf("NewDirStorage(local): %v", err)
	}
	remote, err := NewDirStorage(remoteRoot)
	if err != nil {
		t.Fatalf("NewDirStorage(remote): %v", err)
	}

	cipher, box := mustOwnCipher(t)
	writeEncryptedFile(t, cipher, remoteRoot, index.HashedPath("photo.bin"), plaintext)

	// SyncFrom pulls what the peer's stored index blob names, so the blob a
	// prior push would have left is seeded alongside the file itself.
	ownIndex := index.New()
	ownIndex.Insert("photo.bin", index.ContentHash{1})
	sealed, err := sealIndex(box, ownIndex)
	if err != nil {
		t.Fatalf("sealIndex: %v", err)
	}
	if err := remote.SetIndexBlob(sealed); err != nil {
		t.Fatalf("SetIndexBlob: %v", err)
	}

	responder := NewResponder(remote, logging.NewNop())
	engine := NewEngine(local, cipher, box, logging.NewNop())

	peerKey, err := identity.Generate()
	if err != nil {
		t.Fatalf("identity.Generate: %v", err)
	}
	initiatorConn, responderConn := newFakeConnPair(peerKey.Public)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go responder.Serve(ctx, responderConn)

	if err := engine.SyncFrom(ctx, initiatorConn); err != nil {
		t.Fatalf("SyncFrom: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(localRoot, "photo.bin"))
	if err != nil {
		t.Fatalf("expected pulled file to exist: %v", err)
	}
	if string(got) != plaintext {
		t.Fatalf("pulled content = %q, want %q", got, plaintext)
	}
}

// TestSyncToDeletesFileRemovedLocally seeds the peer with both the stored
// content (under its hashed name, since that's how a prior push would have
// left it) and a sealed index blob asserting "stale.txt" exists, since
// SyncTo's diff is computed against the peer's last persisted index, not a
// live scan of what's on disk at the peer.
func TestSyncToDeletesFileRemovedLocally(t *testing.T) {
	localRoot := t.TempDir()
	remoteRoot := t.TempDir()
	writeFile(t, remoteRoot, index.HashedPath("stale.txt"), "should be deleted")

	local, err := NewDirStorage(localRoot)
	if err != nil {
		t.Fatalf("NewDirStorage(local): %v", err)
	}
	remote, err := NewDirStorage(remoteRoot)
	if err != nil {
		t.Fatalf("NewDirStorage(remote): %v", err)
	}

	cipher, box := mustOwnCipher(t)

	staleIndex := index.New()
	staleIndex.Insert("stale.txt", index.ContentHash{})
	sealed, err := sealIndex(box, staleIndex)
	if err != nil {
		t.Fatalf("sealIndex: %v", err)
	}
	if err := remote.SetIndexBlob(sealed); err != nil {
		t.Fatalf("SetIndexBlob: %v", err)
	}

	responder := NewResponder(remote, logging.NewNop())
	engine := NewEngine(local, cipher, box, logging.NewNop())

	peerKey, err := identity.Generate()
	if err != nil {
		t.Fatalf("identity.Generate: %v", err)
	}
	initiatorConn, responderConn := newFakeConnPair(peerKey.Public)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go responder.Serve(ctx, responderConn)

	if err := engine.SyncTo(ctx, initiatorConn); err != nil {
		t.Fatalf("SyncTo: %v", err)
	}

	if _, err := os.Stat(filepath.Join(remoteRoot, index.HashedPath("stale.txt"))); !os.IsNotExist(err) {
		t.Fatalf("expected stale.txt to be deleted on peer, stat err = %v", err)
	}
}

func TestGuardComponentRejectsTraversal(t *testing.T) {
	bad := []string{"", "..", ".", "a/b", "../escape", "/abs"}
	for _, name := range bad {
		if err := guardComponent(name); err == nil {
			t.Errorf("guardComponent(%q) = nil, want error", name)
		}
	}
	if err := guardComponent("a1b2c3"); err != nil {
		t.Errorf("guardComponent(valid) = %v, want nil", err)
	}
}
