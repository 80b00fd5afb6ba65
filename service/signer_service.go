package service

import (
	"crypto/ecdsa"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Request signature headers.
const (
	HeaderAddress   = "X-Locker-Address"
	HeaderTimestamp = "X-Locker-Timestamp"
	HeaderSignature = "X-Locker-Signature"
)

// RequestDigest is the EIP-191 text hash a caller signs for one request.
func RequestDigest(method, path string, timestamp int64, body []byte) []byte {
	msg := fmt.Sprintf("%s\n%s\n%d\n%s", method, path, timestamp, crypto.Keccak256Hash(body).Hex())
	return accounts.TextHash([]byte(msg))
}

// SignRequest signs a request with key. The recovery id is returned in the
// 27/28 form wallets produce for personal_sign.
func SignRequest(key *ecdsa.PrivateKey, method, path string, timestamp int64, body []byte) ([]byte, error) {
	sig, err := crypto.Sign(RequestDigest(method, path, timestamp, body), key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// SignerService binds requests to a caller identity by recovering the signer
// of the request digest.
type SignerService struct {
	maxAge time.Duration
	clock  Clock
}

func NewSignerService(maxAge time.Duration, clock Clock) *SignerService {
	return &SignerService{maxAge: maxAge, clock: clock}
}

// Verify checks the three signature headers against the request and returns
// the caller identity.
func (s *SignerService) Verify(claimed, timestamp, signature, method, path string, body []byte) (common.Address, error) {
	if claimed == "" || timestamp == "" || signature == "" {
		return common.Address{}, ErrMissingSignature
	}
	if !common.IsHexAddress(claimed) {
		return common.Address{}, fmt.Errorf("%w: bad address %q", ErrInvalidSignature, claimed)
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: bad timestamp %q", ErrInvalidSignature, timestamp)
	}
	age := s.clock.Now().Sub(time.Unix(ts, 0))
	if age > s.maxAge || age < -s.maxAge {
		return common.Address{}, fmt.Errorf("%w: signed at %d", ErrSignatureExpired, ts)
	}
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: malformed signature", ErrInvalidSignature)
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(RequestDigest(method, path, ts, body), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	signer := crypto.PubkeyToAddress(*pub)
	if signer != common.HexToAddress(claimed) {
		return common.Address{}, fmt.Errorf("%w: signed by %s, claimed %s", ErrInvalidSignature, signer.Hex(), claimed)
	}
	return signer, nil
}
