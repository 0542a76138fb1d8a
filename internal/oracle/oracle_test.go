package oracle

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"confidential-market/internal/confidential"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

func testKeys(t *testing.T, n int) []string {
	t.Helper()
	keys := make([]string, n)
	for i := range keys {
		k, err := ethcrypto.GenerateKey()
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}
		keys[i] = hex.EncodeToString(ethcrypto.FromECDSA(k))
	}
	return keys
}

func testDomain() Domain {
	return DefaultDomain(31337, "0x00000000000000000000000000000000000000aa")
}

func testHandles() []confidential.Handle {
	var a, b confidential.Handle
	a[0], b[0] = 1, 2
	return []confidential.Handle{a, b}
}

func TestClearValuesCodec(t *testing.T) {
	data := EncodeClearValues([]uint64{200, 60})
	if len(data) != 2*WordSize {
		t.Fatalf("expected %d bytes, got %d", 2*WordSize, len(data))
	}
	if data[31] != 200 || data[63] != 60 {
		t.Errorf("expected big-endian words, got %x", data)
	}

	got, err := DecodeClearValues(data, 2)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got[0] != 200 || got[1] != 60 {
		t.Errorf("expected [200 60], got %v", got)
	}

	if _, err := DecodeClearValues(data[:40], 2); !errors.Is(err, ErrMalformedClearValues) {
		t.Errorf("expected ErrMalformedClearValues for short input, got %v", err)
	}
	if _, err := DecodeClearValues(data, 3); !errors.Is(err, ErrMalformedClearValues) {
		t.Errorf("expected ErrMalformedClearValues for wrong arity, got %v", err)
	}

	wide := make([]byte, WordSize)
	wide[0] = 1
	if _, err := DecodeClearValues(wide, 1); !errors.Is(err, ErrMalformedClearValues) {
		t.Errorf("expected ErrMalformedClearValues for value above uint64, got %v", err)
	}
}

func TestProofSignAndVerify(t *testing.T) {
	domain := testDomain()
	signer, err := NewProofSigner(testKeys(t, 2), domain)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	verifier, err := NewThresholdVerifier(signer.Addresses(), 2, domain)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	handles := testHandles()
	clearValues := EncodeClearValues([]uint64{5, 9})
	proof, err := signer.Sign(7, handles, clearValues)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(proof) != 2*SignatureSize {
		t.Fatalf("expected %d proof bytes, got %d", 2*SignatureSize, len(proof))
	}
	if v := proof[64]; v != 27 && v != 28 {
		t.Errorf("expected v in {27,28}, got %d", v)
	}

	if err := verifier.Verify(7, handles, clearValues, proof); err != nil {
		t.Fatalf("expected valid proof, got %v", err)
	}

	tests := []struct {
		name      string
		requestID uint64
		clear     []byte
		proof     []byte
		want      error
	}{
		{"other request", 8, clearValues, proof, ErrProofInvalid},
		{"tampered values", 7, EncodeClearValues([]uint64{9, 5}), proof, ErrProofInvalid},
		{"below threshold", 7, clearValues, proof[:SignatureSize], ErrProofInvalid},
		{"duplicate signature", 7, clearValues, append(append([]byte{}, proof[:SignatureSize]...), proof[:SignatureSize]...), ErrProofInvalid},
		{"truncated", 7, clearValues, proof[:70], ErrMalformedProof},
		{"empty", 7, clearValues, nil, ErrMalformedProof},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := verifier.Verify(tt.requestID, handles, tt.clear, tt.proof); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestVerifierRejectsUnknownSigner(t *testing.T) {
	domain := testDomain()
	trusted, _ := NewProofSigner(testKeys(t, 1), domain)
	rogue, _ := NewProofSigner(testKeys(t, 1), domain)
	verifier, err := NewThresholdVerifier(trusted.Addresses(), 1, domain)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	handles := testHandles()
	clearValues := EncodeClearValues([]uint64{1, 2})
	proof, _ := rogue.Sign(1, handles, clearValues)
	if err := verifier.Verify(1, handles, clearValues, proof); !errors.Is(err, ErrProofInvalid) {
		t.Errorf("expected ErrProofInvalid, got %v", err)
	}
}

func TestVerifierDomainSeparation(t *testing.T) {
	signer, _ := NewProofSigner(testKeys(t, 1), testDomain())
	other := DefaultDomain(1, "0x00000000000000000000000000000000000000bb")
	verifier, _ := NewThresholdVerifier(signer.Addresses(), 1, other)

	handles := testHandles()
	clearValues := EncodeClearValues([]uint64{1, 2})
	proof, _ := signer.Sign(3, handles, clearValues)
	if err := verifier.Verify(3, handles, clearValues, proof); !errors.Is(err, ErrProofInvalid) {
		t.Errorf("expected ErrProofInvalid across domains, got %v", err)
	}
}

func TestNewThresholdVerifierBounds(t *testing.T) {
	addrs := []common.Address{common.HexToAddress("0x01")}
	if _, err := NewThresholdVerifier(addrs, 0, testDomain()); err == nil {
		t.Error("expected error for zero threshold")
	}
	if _, err := NewThresholdVerifier(addrs, 2, testDomain()); err == nil {
		t.Error("expected error for threshold above signer count")
	}
	if _, err := ParseAddresses([]string{"nope"}); err == nil {
		t.Error("expected error for invalid address")
	}
}

type delivery struct {
	requestID   uint64
	clearValues []byte
	proof       []byte
}

type recordingSink struct {
	mu         sync.Mutex
	failFirst  int
	calls      int
	deliveries chan delivery
}

func (s *recordingSink) HandleCallback(ctx context.Context, requestID uint64, clearValues, proof []byte) error {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.failFirst
	s.mu.Unlock()
	if fail {
		return errTransient
	}
	s.deliveries <- delivery{requestID, clearValues, proof}
	return nil
}

var errTransient = errors.New("not yet")

func TestLocalRelayerDeliversSignedValues(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := confidential.NewPlaintextBackend([]byte("secret"), nil)
	const account = "oracle"
	var handles []confidential.Handle
	for _, v := range []uint64{200, 60} {
		h, err := backend.TrivialEncrypt(ctx, v)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		if err := backend.Allow(ctx, h, account); err != nil {
			t.Fatalf("allow: %v", err)
		}
		handles = append(handles, h)
	}

	domain := testDomain()
	signer, _ := NewProofSigner(testKeys(t, 1), domain)
	verifier, _ := NewThresholdVerifier(signer.Addresses(), 1, domain)

	sink := &recordingSink{failFirst: 2, deliveries: make(chan delivery, 1)}
	relayer := NewLocalRelayer(backend, account, signer, RelayerOptions{
		Attempts:  5,
		Backoff:   time.Millisecond,
		Retryable: func(err error) bool { return errors.Is(err, errTransient) },
	}, zap.NewNop())
	relayer.SetSink(sink)
	go relayer.Run(ctx)

	id, err := relayer.RequestDecryption(ctx, handles)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero request id")
	}

	select {
	case d := <-sink.deliveries:
		if d.requestID != id {
			t.Errorf("expected request id %d, got %d", id, d.requestID)
		}
		values, err := DecodeClearValues(d.clearValues, 2)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if values[0] != 200 || values[1] != 60 {
			t.Errorf("expected [200 60], got %v", values)
		}
		if err := verifier.Verify(id, handles, d.clearValues, d.proof); err != nil {
			t.Errorf("expected verifiable proof, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback not delivered")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.calls != 3 {
		t.Errorf("expected 3 delivery attempts, got %d", sink.calls)
	}
}

// pendingDecrypter denies access until grants is zero, like a request
// whose transaction has not committed yet.
type pendingDecrypter struct {
	mu     sync.Mutex
	grants int
	calls  int
}

func (d *pendingDecrypter) Decrypt(ctx context.Context, h confidential.Handle, requester string) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.grants > 0 {
		d.grants--
		return 0, confidential.ErrAccessDenied
	}
	return uint64(h[0]), nil
}

func TestLocalRelayerRetriesUncommittedGrants(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	decrypter := &pendingDecrypter{grants: 3}
	signer, _ := NewProofSigner(testKeys(t, 1), testDomain())
	sink := &recordingSink{deliveries: make(chan delivery, 1)}
	relayer := NewLocalRelayer(decrypter, "oracle", signer, RelayerOptions{
		Attempts: 5,
		Backoff:  time.Millisecond,
	}, zap.NewNop())
	relayer.SetSink(sink)
	go relayer.Run(ctx)

	if _, err := relayer.RequestDecryption(ctx, testHandles()); err != nil {
		t.Fatalf("request: %v", err)
	}
	select {
	case d := <-sink.deliveries:
		values, err := DecodeClearValues(d.clearValues, 2)
		if err != nil || values[0] != 1 || values[1] != 2 {
			t.Errorf("expected [1 2], got %v %v", values, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback not delivered")
	}
}

func TestLocalRelayerQueueFull(t *testing.T) {
	backend := confidential.NewPlaintextBackend([]byte("secret"), nil)
	signer, _ := NewProofSigner(testKeys(t, 1), testDomain())
	relayer := NewLocalRelayer(backend, "oracle", signer, RelayerOptions{QueueSize: 1}, zap.NewNop())

	ctx := context.Background()
	if _, err := relayer.RequestDecryption(ctx, nil); !errors.Is(err, ErrNoHandles) {
		t.Errorf("expected ErrNoHandles, got %v", err)
	}
	if _, err := relayer.RequestDecryption(ctx, testHandles()); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, err := relayer.RequestDecryption(ctx, testHandles()); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

func TestGatewayClient(t *testing.T) {
	var got gatewayRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/public-decrypt" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(gatewayResponse{RequestID: 99})
	}))
	defer srv.Close()

	client := NewGatewayClient(srv.URL+"/", "http://market/api/oracle/callback")
	handles := testHandles()
	id, err := client.RequestDecryption(context.Background(), handles)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if id != 99 {
		t.Errorf("expected request id 99, got %d", id)
	}
	if len(got.Handles) != 2 || got.Handles[0] != handles[0].String() {
		t.Errorf("expected base58 handles, got %v", got.Handles)
	}
	if got.CallbackURL != "http://market/api/oracle/callback" {
		t.Errorf("unexpected callback url %q", got.CallbackURL)
	}
}

func TestGatewayClientError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   gatewayResponse
	}{
		{"gateway busy", http.StatusServiceUnavailable, gatewayResponse{Error: "busy"}},
		{"missing request id", http.StatusAccepted, gatewayResponse{}},
		{"request id above int64", http.StatusAccepted, gatewayResponse{RequestID: MaxRequestID + 1}},
		{"largest uint64 id", http.StatusAccepted, gatewayResponse{RequestID: math.MaxUint64}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(tt.body)
			}))
			defer srv.Close()

			client := NewGatewayClient(srv.URL, "")
			if _, err := client.RequestDecryption(context.Background(), testHandles()); !errors.Is(err, ErrRequestFailed) {
				t.Errorf("expected ErrRequestFailed, got %v", err)
			}
		})
	}
}

func TestGatewayClientAcceptsLargestStorableID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(gatewayResponse{RequestID: MaxRequestID})
	}))
	defer srv.Close()

	id, err := NewGatewayClient(srv.URL, "").RequestDecryption(context.Background(), testHandles())
	if err != nil || id != MaxRequestID {
		t.Errorf("expected id %d, got %d %v", uint64(MaxRequestID), id, err)
	}
}
