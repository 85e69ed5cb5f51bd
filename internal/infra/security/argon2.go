package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/port"
)

const (
	argon2Variant = "argon2id"
	argon2Version = "v=19"
)

var (
	errInvalidHashFormat = errors.New("argon2: invalid encoded hash format")
	errInvalidConfig     = errors.New("argon2: invalid configuration")
)

// Argon2Config defines tunable parameters for Argon2id password hashing.
type Argon2Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Config returns the library default Argon2id configuration.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Validate checks the parameters against conservative lower bounds.
func (c Argon2Config) Validate() error {
	if c.Memory < 8*1024 {
		return fmt.Errorf("%w: memory must be at least 8192", errInvalidConfig)
	}
	if c.Iterations == 0 {
		return fmt.Errorf("%w: iterations must be greater than zero", errInvalidConfig)
	}
	if c.Parallelism == 0 {
		return fmt.Errorf("%w: parallelism must be greater than zero", errInvalidConfig)
	}
	if c.SaltLength < 8 {
		return fmt.Errorf("%w: salt length must be at least 8 bytes", errInvalidConfig)
	}
	if c.KeyLength < 16 {
		return fmt.Errorf("%w: key length must be at least 16 bytes", errInvalidConfig)
	}
	return nil
}

// Argon2Hasher implements port.PasswordHasher with Argon2id in PHC-like encoding:
// argon2id$v=19$m=<memory>,t=<iterations>,p=<parallelism>$<salt>$<hash>.
type Argon2Hasher struct {
	cfg Argon2Config
}

// NewArgon2Hasher validates cfg and returns a hasher using it for new hashes.
// Verification always uses the parameters embedded in the stored hash.
func NewArgon2Hasher(cfg Argon2Config) (*Argon2Hasher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Argon2Hasher{cfg: cfg}, nil
}

// Hash generates an encoded Argon2id hash for the provided password.
func (h *Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("argon2: generate salt: %w", err)
	}

	sum := argon2.IDKey([]byte(password), salt, h.cfg.Iterations, h.cfg.Memory, h.cfg.Parallelism, h.cfg.KeyLength)

	return strings.Join([]string{
		argon2Variant,
		argon2Version,
		fmt.Sprintf("m=%d,t=%d,p=%d", h.cfg.Memory, h.cfg.Iterations, h.cfg.Parallelism),
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	}, "$"), nil
}

// Verify compares the password against an encoded hash. The final comparison
// is delegated to subtle.ConstantTimeCompare over equal-length keys.
func (h *Argon2Hasher) Verify(password, encoded string) (bool, error) {
	if encoded == "" {
		return false, errInvalidHashFormat
	}

	params, salt, expected, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

func decodeHash(encoded string) (Argon2Config, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 {
		return Argon2Config{}, nil, nil, errInvalidHashFormat
	}
	if parts[0] != argon2Variant {
		return Argon2Config{}, nil, nil, fmt.Errorf("argon2: unexpected variant %q", parts[0])
	}
	if parts[1] != argon2Version {
		return Argon2Config{}, nil, nil, fmt.Errorf("argon2: unsupported version %q", parts[1])
	}

	cfg, err := parseParams(parts[2])
	if err != nil {
		return Argon2Config{}, nil, nil, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return Argon2Config{}, nil, nil, fmt.Errorf("argon2: decode salt: %w", err)
	}

	hash, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Argon2Config{}, nil, nil, fmt.Errorf("argon2: decode hash: %w", err)
	}

	cfg.SaltLength = uint32(len(salt))
	cfg.KeyLength = uint32(len(hash))
	if err := cfg.Validate(); err != nil {
		return Argon2Config{}, nil, nil, err
	}

	return cfg, salt, hash, nil
}

func parseParams(segment string) (Argon2Config, error) {
	var cfg Argon2Config

	entries := strings.Split(segment, ",")
	if len(entries) != 3 {
		return cfg, errInvalidHashFormat
	}

	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			return cfg, errInvalidHashFormat
		}

		switch key {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return cfg, fmt.Errorf("argon2: parse m: %w", err)
			}
			cfg.Memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return cfg, fmt.Errorf("argon2: parse t: %w", err)
			}
			cfg.Iterations = uint32(v)
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil {
				return cfg, fmt.Errorf("argon2: parse p: %w", err)
			}
			cfg.Parallelism = uint8(v)
		default:
			return cfg, errInvalidHashFormat
		}
	}

	return cfg, nil
}

var _ port.PasswordHasher = (*Argon2Hasher)(nil)
