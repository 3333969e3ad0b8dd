package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

// Ошибки шифрования
var (
	ErrInvalidKeyLength   = errors.New("encryption key must be exactly 32 bytes for AES-256")
	ErrInvalidCiphertext  = errors.New("invalid ciphertext")
	ErrCiphertextTooShort = errors.New("ciphertext too short")
	ErrDecryptionFailed   = errors.New("decryption failed: authentication error")
)

// Префиксы форматов хранения.
// legacyPrefix - обратимая base64-кодировка без шифрования, оставшаяся
// от ранних версий схемы. Новые записи всегда пишутся в формате aeadPrefix.
const (
	aeadPrefix   = "enc:v2:"
	legacyPrefix = "enc:v1:"
)

// Codec - кодек для секретов подключений (API ключи, passphrase).
// Encode/Decode образуют пару: Decode(Encode(x)) == x для любых строк,
// включая PEM-блоки с переводами строк.
type Codec struct {
	key []byte
}

// NewCodec создает кодек с ключом AES-256 (ровно 32 байта)
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKeyLength
	}
	k := make([]byte, 32)
	copy(k, key)
	return &Codec{key: k}, nil
}

// Encode шифрует секрет для хранения в БД (AES-256-GCM, base64)
func (c *Codec) Encode(plaintext string) (string, error) {
	ciphertext, err := Encrypt(plaintext, c.key)
	if err != nil {
		return "", err
	}
	return aeadPrefix + ciphertext, nil
}

// Decode расшифровывает секрет из формата хранения.
// Поддерживает legacy-формат enc:v1 (чистый base64) для записей,
// созданных до перехода на AEAD, и неразмеченные значения как plaintext.
func (c *Codec) Decode(stored string) (string, error) {
	switch {
	case strings.HasPrefix(stored, aeadPrefix):
		return Decrypt(strings.TrimPrefix(stored, aeadPrefix), c.key)
	case strings.HasPrefix(stored, legacyPrefix):
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, legacyPrefix))
		if err != nil {
			return "", ErrInvalidCiphertext
		}
		return string(raw), nil
	default:
		// Старые записи без префикса хранились как есть
		return stored, nil
	}
}

// Encrypt шифрует plaintext с использованием AES-256-GCM
// Возвращает base64-encoded строку
func Encrypt(plaintext string, key []byte) (string, error) {
	if len(key) != 32 {
		return "", ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	// Случайный nonce, GCM добавляет аутентификационный тег автоматически
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)

	// base64 для безопасного хранения в БД
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt расшифровывает base64-encoded ciphertext с использованием AES-256-GCM
func Decrypt(ciphertextBase64 string, key []byte) (string, error) {
	if len(key) != 32 {
		return "", ErrInvalidKeyLength
	}

	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextBase64)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", ErrCiphertextTooShort
	}

	nonce, ciphertextData := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertextData, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// GenerateKey генерирует криптографически стойкий случайный ключ (32 байта для AES-256)
func GenerateKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// ValidateKey проверяет, что ключ имеет правильную длину
func ValidateKey(key []byte) error {
	if len(key) != 32 {
		return ErrInvalidKeyLength
	}
	return nil
}
