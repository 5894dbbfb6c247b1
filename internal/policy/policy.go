// Package policy validates the fields of an announced server before it is probed or listed.
package policy

import (
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/woozymasta/masterlist/internal/models"
)

// DefaultAllowedChars is the character set accepted in server names.
const DefaultAllowedChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_ "

var (
	// ErrNameLength is returned for a name outside the configured bounds.
	ErrNameLength = errors.New("server name length is out of bounds")

	// ErrNameChars is returned for a name containing a disallowed character.
	ErrNameChars = errors.New("server name contains disallowed characters")

	// ErrChecksum is returned for a build checksum not on the allow-list.
	ErrChecksum = errors.New("server checksum is not allowed")

	// ErrVersion is returned for an SDK version not on the allow-list.
	ErrVersion = errors.New("server version is not allowed")

	// ErrPort is returned for a missing port.
	ErrPort = errors.New("server port is required")
)

// Config holds the announce policy.
type Config struct {
	AllowedChars       string
	AllowedChecksums   []uint32
	AllowedSDKVersions []string
	MinNameLength      int
	MaxNameLength      int
	CheckName          bool
}

// Policy is an immutable, precomputed announce policy.
type Policy struct {
	chars     map[rune]struct{}
	checksums map[uint32]struct{}
	versions  map[uint64]struct{}
	minName   int
	maxName   int
	checkName bool
}

// New precomputes the lookup sets of cfg.
func New(cfg Config) *Policy {
	p := &Policy{
		minName:   cfg.MinNameLength,
		maxName:   cfg.MaxNameLength,
		checkName: cfg.CheckName,
	}

	allowed := cfg.AllowedChars
	if allowed == "" {
		allowed = DefaultAllowedChars
	}
	p.chars = make(map[rune]struct{}, len(allowed))
	for _, r := range allowed {
		p.chars[r] = struct{}{}
	}

	if len(cfg.AllowedChecksums) > 0 {
		p.checksums = make(map[uint32]struct{}, len(cfg.AllowedChecksums))
		for _, c := range cfg.AllowedChecksums {
			p.checksums[c] = struct{}{}
		}
	}

	if len(cfg.AllowedSDKVersions) > 0 {
		p.versions = make(map[uint64]struct{}, len(cfg.AllowedSDKVersions))
		for _, v := range cfg.AllowedSDKVersions {
			p.versions[xxhash.Sum64String(v)] = struct{}{}
		}
	}

	return p
}

// Check returns the first policy violation of s, or nil.
func (p *Policy) Check(s models.Server) error {
	if s.Port == 0 {
		return ErrPort
	}

	if p.checkName {
		n := utf8.RuneCountInString(s.Name)
		if n < p.minName || (p.maxName > 0 && n > p.maxName) {
			return fmt.Errorf("%w: %d not in [%d, %d]", ErrNameLength, n, p.minName, p.maxName)
		}

		for _, r := range s.Name {
			if _, ok := p.chars[r]; !ok {
				return fmt.Errorf("%w: %q", ErrNameChars, r)
			}
		}
	}

	if p.checksums != nil {
		c, err := strconv.ParseUint(s.Checksum, 10, 32)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrChecksum, s.Checksum)
		}
		if _, ok := p.checksums[uint32(c)]; !ok {
			return fmt.Errorf("%w: %d", ErrChecksum, c)
		}
	}

	if p.versions != nil {
		if _, ok := p.versions[xxhash.Sum64String(s.Version)]; !ok {
			return fmt.Errorf("%w: %q", ErrVersion, s.Version)
		}
	}

	return nil
}
