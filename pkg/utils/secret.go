package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	secretKeySize   = 32
	secretNonceSize = 24
	secretPrefix    = "enc:v1:"
	secretInfo      = "ChainflowWebhookSecret"
)

var ErrSecretDecrypt = errors.New("failed to decrypt secret")

// SecretCipher 用于加密存储 webhook secret
// 未配置主密钥时为直通模式，明文存储
type SecretCipher struct {
	key     [secretKeySize]byte
	enabled bool
}

// NewSecretCipher 通过 HKDF 从主密钥派生对称密钥
func NewSecretCipher(masterKey string) (*SecretCipher, error) {
	c := &SecretCipher{}
	if masterKey == "" {
		return c, nil
	}

	reader := hkdf.New(sha256.New, []byte(masterKey), nil, []byte(secretInfo))
	if _, err := io.ReadFull(reader, c.key[:]); err != nil {
		return nil, fmt.Errorf("failed to derive secret key: %w", err)
	}
	c.enabled = true
	return c, nil
}

// Enabled 是否启用加密
func (c *SecretCipher) Enabled() bool {
	return c != nil && c.enabled
}

// Encrypt 加密明文，空字符串与已加密的值原样返回
func (c *SecretCipher) Encrypt(plaintext string) (string, error) {
	if !c.Enabled() || plaintext == "" || IsEncryptedSecret(plaintext) {
		return plaintext, nil
	}

	var nonce [secretNonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &c.key)
	return secretPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt 解密；未带前缀的值视为明文
func (c *SecretCipher) Decrypt(value string) (string, error) {
	if !IsEncryptedSecret(value) {
		return value, nil
	}
	if !c.Enabled() {
		return "", fmt.Errorf("%w: no secret key configured", ErrSecretDecrypt)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, secretPrefix))
	if err != nil || len(raw) < secretNonceSize+secretbox.Overhead {
		return "", ErrSecretDecrypt
	}

	var nonce [secretNonceSize]byte
	copy(nonce[:], raw[:secretNonceSize])

	plaintext, ok := secretbox.Open(nil, raw[secretNonceSize:], &nonce, &c.key)
	if !ok {
		return "", ErrSecretDecrypt
	}
	return string(plaintext), nil
}

// IsEncryptedSecret 判断是否为加密后的值
func IsEncryptedSecret(value string) bool {
	return strings.HasPrefix(value, secretPrefix)
}
