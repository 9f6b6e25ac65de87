// Package security provides cryptographic integrity for issued route quotes
package security

import (
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/EmmaExcel/settlement-switch-sub002/internal/model"
)

// SignedQuote wraps a route with the engine's signature so the execution
// layer can verify the quote was issued here and has not been altered.
type SignedQuote struct {
	Route     model.Route `json:"route"`
	Score     int64       `json:"score"`
	IssuedAt  int64       `json:"issued_at"`
	Signature string      `json:"signature"`
	SignerKey string      `json:"signer_key"`
}

// QuoteSigner signs route quotes with a secp256k1 key
type QuoteSigner struct {
	privateKey *ecdsa.PrivateKey
	pubKeyHex  string
}

// NewQuoteSigner generates a fresh signing key for this engine instance
func NewQuoteSigner() (*QuoteSigner, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}

	pubKeyHex := hex.EncodeToString(crypto.FromECDSAPub(&privateKey.PublicKey))
	logrus.Infof("Quote signer initialized with public key: %s...", pubKeyHex[:16])

	return &QuoteSigner{privateKey: privateKey, pubKeyHex: pubKeyHex}, nil
}

// NewQuoteSignerFromHex loads a signing key from its hex encoding
func NewQuoteSignerFromHex(keyHex string) (*QuoteSigner, error) {
	privateKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	return &QuoteSigner{
		privateKey: privateKey,
		pubKeyHex:  hex.EncodeToString(crypto.FromECDSAPub(&privateKey.PublicKey)),
	}, nil
}

// PublicKey returns the hex-encoded public key quotes are verified against
func (s *QuoteSigner) PublicKey() string {
	return s.pubKeyHex
}

// Sign produces a signed quote for a scored route
func (s *QuoteSigner) Sign(route model.Route, score int64) (*SignedQuote, error) {
	issuedAt := time.Now().Unix()
	digest := quoteDigest(route, score, issuedAt)

	sig, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign quote: %w", err)
	}

	return &SignedQuote{
		Route:     route,
		Score:     score,
		IssuedAt:  issuedAt,
		Signature: hex.EncodeToString(sig),
		SignerKey: s.pubKeyHex,
	}, nil
}

// Verify checks a signed quote against a known public key
func Verify(quote *SignedQuote, pubKeyHex string) (bool, error) {
	sig, err := hex.DecodeString(quote.Signature)
	if err != nil {
		return false, fmt.Errorf("failed to decode signature: %w", err)
	}
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return false, fmt.Errorf("failed to decode public key: %w", err)
	}
	if len(sig) < 64 {
		return false, fmt.Errorf("invalid signature length: %d", len(sig))
	}

	digest := quoteDigest(quote.Route, quote.Score, quote.IssuedAt)
	// Recovery byte is not part of the verification input
	return crypto.VerifySignature(pubKey, digest, sig[:64]), nil
}

// quoteDigest hashes the fields that make a quote binding. The metrics
// snapshot is informational and deliberately excluded.
func quoteDigest(route model.Route, score, issuedAt int64) []byte {
	var buf []byte
	buf = append(buf, []byte(route.Bridge)...)
	buf = append(buf, route.TokenIn.Bytes()...)
	buf = append(buf, route.TokenOut.Bytes()...)
	if route.AmountIn != nil {
		buf = append(buf, route.AmountIn.Bytes()...)
	}
	if route.AmountOut != nil {
		buf = append(buf, route.AmountOut.Bytes()...)
	}
	buf = binary.BigEndian.AppendUint64(buf, uint64(route.SrcChainID))
	buf = binary.BigEndian.AppendUint64(buf, uint64(route.DstChainID))
	buf = binary.BigEndian.AppendUint64(buf, uint64(route.Deadline.Unix()))
	buf = binary.BigEndian.AppendUint64(buf, uint64(score))
	buf = binary.BigEndian.AppendUint64(buf, uint64(issuedAt))
	return crypto.Keccak256(buf)
}
