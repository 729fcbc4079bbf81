package venue

import (
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// rsv is the split signature the exchange endpoint expects.
type rsv struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// Signer signs exchange actions with a secp256k1 key. The key may be the
// master account itself or an agent key authorized to trade for a master;
// the account resolver decides which, the signer only signs.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner parses a hex private key, with or without the 0x prefix.
func NewSigner(keyHex string) (*Signer, error) {
	keyHex = strings.TrimPrefix(strings.TrimSpace(keyHex), "0x")
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address returns the EOA address derived from the signing key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignAction hashes the serialized action together with the nonce and signs
// the digest. The action hash is keccak256(json(action) || nonce_be || 0x00),
// the trailing byte marking the absent vault address.
func (s *Signer) SignAction(action any, nonce int64) (rsv, error) {
	body, err := json.Marshal(action)
	if err != nil {
		return rsv{}, fmt.Errorf("marshal action: %w", err)
	}

	data := make([]byte, 0, len(body)+9)
	data = append(data, body...)
	data = binary.BigEndian.AppendUint64(data, uint64(nonce))
	data = append(data, 0x00)
	digest := crypto.Keccak256(data)

	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return rsv{}, fmt.Errorf("sign action: %w", err)
	}

	v := int(sig[64])
	if v < 27 {
		v += 27
	}
	return rsv{
		R: hexutil.Encode(sig[:32]),
		S: hexutil.Encode(sig[32:64]),
		V: v,
	}, nil
}
