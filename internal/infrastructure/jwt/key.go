package jwt

import (
	"crypto"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/manorfm/authcore/internal/domain"
)

const keyTypeRSA = "RSA"

// privateKey rebuilds the RSA private key from its JWK components
func privateKey(cfg domain.SigningKey) (*rsa.PrivateKey, error) {
	if cfg.Kty != keyTypeRSA {
		return nil, fmt.Errorf("%w: kty must be %s", domain.ErrInvalidKeyConfig, keyTypeRSA)
	}

	doc, err := json.Marshal(map[string]string{
		"kty": cfg.Kty,
		"n":   cfg.N,
		"e":   cfg.E,
		"d":   cfg.D,
		"p":   cfg.P,
		"q":   cfg.Q,
		"dp":  cfg.Dp,
		"dq":  cfg.Dq,
		"qi":  cfg.Qi,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidKeyConfig, err)
	}

	key, err := jwk.ParseKey(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidKeyConfig, err)
	}

	var raw interface{}
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidKeyConfig, err)
	}
	private, ok := raw.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA private key", domain.ErrInvalidKeyConfig)
	}
	if err := private.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidKeyConfig, err)
	}
	private.Precompute()

	return private, nil
}

// keyID is the RFC 7638 thumbprint of the public key
func keyID(public *rsa.PublicKey) (string, error) {
	key, err := jwk.FromRaw(public)
	if err != nil {
		return "", err
	}
	thumbprint, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(thumbprint), nil
}

// SigningKeyFromRSA encodes an RSA private key as the JWK components held in configuration
func SigningKeyFromRSA(key *rsa.PrivateKey) domain.SigningKey {
	if key.Precomputed.Dp == nil {
		key.Precompute()
	}
	return domain.SigningKey{
		Kty: keyTypeRSA,
		N:   encodeInt(key.N),
		E:   encodeInt(big.NewInt(int64(key.E))),
		D:   encodeInt(key.D),
		P:   encodeInt(key.Primes[0]),
		Q:   encodeInt(key.Primes[1]),
		Dp:  encodeInt(key.Precomputed.Dp),
		Dq:  encodeInt(key.Precomputed.Dq),
		Qi:  encodeInt(key.Precomputed.Qinv),
	}
}

func encodeInt(i *big.Int) string {
	return base64.RawURLEncoding.EncodeToString(i.Bytes())
}
