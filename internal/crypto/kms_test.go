package crypto

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/googleapis/gax-go/v2"
)

// fakeKMSClient "encrypts" by reversing the bytes.
type fakeKMSClient struct {
	err      error
	lastName string
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}

func (f *fakeKMSClient) Encrypt(_ context.Context, req *kmspb.EncryptRequest, _ ...gax.CallOption) (*kmspb.EncryptResponse, error) {
	f.lastName = req.Name
	if f.err != nil {
		return nil, f.err
	}
	return &kmspb.EncryptResponse{Ciphertext: reverse(req.Plaintext)}, nil
}

func (f *fakeKMSClient) Decrypt(_ context.Context, req *kmspb.DecryptRequest, _ ...gax.CallOption) (*kmspb.DecryptResponse, error) {
	f.lastName = req.Name
	if f.err != nil {
		return nil, f.err
	}
	return &kmspb.DecryptResponse{Plaintext: reverse(req.Ciphertext)}, nil
}

func TestKMSSealOpenRoundTrip(t *testing.T) {
	client := &fakeKMSClient{}
	k := NewKMS(client, "projects/p/locations/l/keyRings/r/cryptoKeys/k")

	sealed, err := k.Seal(context.Background(), []byte(`{"text":"hello"}`))
	if err != nil {
		t.Fatalf("seal error: %v", err)
	}
	if bytes.Contains(sealed, []byte("hello")) {
		t.Fatalf("expected sealed value to hide plaintext, got %s", sealed)
	}
	if client.lastName != "projects/p/locations/l/keyRings/r/cryptoKeys/k" {
		t.Fatalf("unexpected key name %q", client.lastName)
	}

	opened, err := k.Open(context.Background(), sealed)
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	if string(opened) != `{"text":"hello"}` {
		t.Fatalf("unexpected plaintext %s", opened)
	}
}

func TestKMSOpenRejectsBadBase64(t *testing.T) {
	k := NewKMS(&fakeKMSClient{}, "key")
	if _, err := k.Open(context.Background(), []byte("%%%")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestKMSSealPropagatesClientError(t *testing.T) {
	boom := errors.New("permission denied")
	k := NewKMS(&fakeKMSClient{err: boom}, "key")
	if _, err := k.Seal(context.Background(), []byte("x")); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped client error, got %v", err)
	}
}
