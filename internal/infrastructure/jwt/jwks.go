package jwt

import (
	"crypto/rsa"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// PublicKey returns the public half of the configured signing key
func (g *TokenGenerator) PublicKey() (*rsa.PublicKey, error) {
	private, err := privateKey(g.key)
	if err != nil {
		return nil, err
	}
	return &private.PublicKey, nil
}

// PublicJWKS exports the public key as a JWK set
func (g *TokenGenerator) PublicJWKS() (jwk.Set, error) {
	public, err := g.PublicKey()
	if err != nil {
		return nil, err
	}

	key, err := jwk.FromRaw(public)
	if err != nil {
		return nil, err
	}
	if err := key.Set(jwk.KeyIDKey, g.keyID); err != nil {
		return nil, err
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		return nil, err
	}
	if err := key.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, err
	}

	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		return nil, err
	}
	return set, nil
}
