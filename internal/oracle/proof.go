package oracle

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"confidential-market/internal/confidential"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SignatureSize is the length of one r || s || v signature inside a proof.
const SignatureSize = 65

var (
	// EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)
	domainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
	)

	// RevealVerification(uint256 requestId,bytes32 handlesHash,bytes clearValues)
	revealTypeHash = ethcrypto.Keccak256(
		[]byte("RevealVerification(uint256 requestId,bytes32 handlesHash,bytes clearValues)"),
	)
)

// Domain is the EIP-712 domain proofs are bound to.
type Domain struct {
	Name              string
	Version           string
	ChainID           int64
	VerifyingContract common.Address
}

// DefaultDomain returns the domain used by the market service.
func DefaultDomain(chainID int64, verifyingContract string) Domain {
	return Domain{
		Name:              "ConfidentialMarketOracle",
		Version:           "1",
		ChainID:           chainID,
		VerifyingContract: common.HexToAddress(verifyingContract),
	}
}

func (d Domain) separator() []byte {
	return ethcrypto.Keccak256(
		domainTypeHash,
		ethcrypto.Keccak256([]byte(d.Name)),
		ethcrypto.Keccak256([]byte(d.Version)),
		common.LeftPadBytes(big.NewInt(d.ChainID).Bytes(), 32),
		common.LeftPadBytes(d.VerifyingContract.Bytes(), 32),
	)
}

// Digest computes the EIP-712 digest the oracle signers attest to:
//
//	keccak256("\x19\x01" || domainSeparator || structHash)
func (d Domain) Digest(requestID uint64, handles []confidential.Handle, clearValues []byte) []byte {
	handleBytes := make([]byte, 0, len(handles)*confidential.HandleSize)
	for _, h := range handles {
		handleBytes = append(handleBytes, h[:]...)
	}
	structHash := ethcrypto.Keccak256(
		revealTypeHash,
		common.LeftPadBytes(new(big.Int).SetUint64(requestID).Bytes(), 32),
		ethcrypto.Keccak256(handleBytes),
		ethcrypto.Keccak256(clearValues),
	)
	return ethcrypto.Keccak256([]byte{0x19, 0x01}, d.separator(), structHash)
}

// ProofSigner produces decryption proofs: one signature per oracle key.
type ProofSigner struct {
	keys   []*ecdsa.PrivateKey
	domain Domain
}

// NewProofSigner creates a signer from hex-encoded secp256k1 private keys.
func NewProofSigner(hexKeys []string, domain Domain) (*ProofSigner, error) {
	if len(hexKeys) == 0 {
		return nil, fmt.Errorf("oracle: no signer keys")
	}
	keys := make([]*ecdsa.PrivateKey, 0, len(hexKeys))
	for i, k := range hexKeys {
		pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(k), "0x"))
		if err != nil {
			return nil, fmt.Errorf("oracle: invalid signer key %d: %w", i, err)
		}
		keys = append(keys, pk)
	}
	return &ProofSigner{keys: keys, domain: domain}, nil
}

// Addresses returns the signer addresses, in key order.
func (s *ProofSigner) Addresses() []common.Address {
	out := make([]common.Address, len(s.keys))
	for i, k := range s.keys {
		out[i] = ethcrypto.PubkeyToAddress(k.PublicKey)
	}
	return out
}

// Sign returns the concatenated signatures over the reveal digest.
func (s *ProofSigner) Sign(requestID uint64, handles []confidential.Handle, clearValues []byte) ([]byte, error) {
	digest := s.domain.Digest(requestID, handles, clearValues)
	proof := make([]byte, 0, len(s.keys)*SignatureSize)
	for _, k := range s.keys {
		sig, err := ethcrypto.Sign(digest, k)
		if err != nil {
			return nil, fmt.Errorf("oracle: signing: %w", err)
		}
		// go-ethereum returns v in {0,1}; EIP-712 expects v in {27,28}.
		if sig[64] < 27 {
			sig[64] += 27
		}
		proof = append(proof, sig...)
	}
	return proof, nil
}

// ThresholdVerifier accepts a proof when at least threshold distinct
// registered signers signed the reveal digest.
type ThresholdVerifier struct {
	signers   map[common.Address]struct{}
	threshold int
	domain    Domain
}

// NewThresholdVerifier creates a verifier for the given signer set.
func NewThresholdVerifier(signers []common.Address, threshold int, domain Domain) (*ThresholdVerifier, error) {
	if threshold < 1 || threshold > len(signers) {
		return nil, fmt.Errorf("oracle: threshold %d invalid for %d signers", threshold, len(signers))
	}
	set := make(map[common.Address]struct{}, len(signers))
	for _, a := range signers {
		set[a] = struct{}{}
	}
	return &ThresholdVerifier{signers: set, threshold: threshold, domain: domain}, nil
}

// ParseAddresses converts hex addresses.
func ParseAddresses(hexAddrs []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(hexAddrs))
	for _, a := range hexAddrs {
		a = strings.TrimSpace(a)
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("oracle: invalid signer address %q", a)
		}
		out = append(out, common.HexToAddress(a))
	}
	return out, nil
}

func (v *ThresholdVerifier) Verify(requestID uint64, handles []confidential.Handle, clearValues, proof []byte) error {
	if len(proof) == 0 || len(proof)%SignatureSize != 0 {
		return fmt.Errorf("%w: length %d", ErrMalformedProof, len(proof))
	}
	digest := v.domain.Digest(requestID, handles, clearValues)

	seen := make(map[common.Address]struct{})
	for off := 0; off < len(proof); off += SignatureSize {
		sig := make([]byte, SignatureSize)
		copy(sig, proof[off:off+SignatureSize])
		if sig[64] >= 27 {
			sig[64] -= 27
		}
		pub, err := ethcrypto.SigToPub(digest, sig)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProofInvalid, err)
		}
		addr := ethcrypto.PubkeyToAddress(*pub)
		if _, ok := v.signers[addr]; !ok {
			return fmt.Errorf("%w: unknown signer %s", ErrProofInvalid, addr.Hex())
		}
		seen[addr] = struct{}{}
	}
	if len(seen) < v.threshold {
		return fmt.Errorf("%w: %d of %d required signatures", ErrProofInvalid, len(seen), v.threshold)
	}
	return nil
}

var _ Verifier = (*ThresholdVerifier)(nil)
