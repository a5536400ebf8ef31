package download

import (
	"errors"
	"hash"
)

// Option defines optional settings for an output file.
//
// WithChecksum verifies the written bytes against expected, a hex
// encoded digest produced by h (e.g. sha256.New()).
//
// WithProgress logs write progress through the logger given to Open.
type Option func(*options) error

type options struct {
	checksum *checksumVerifier
	progress bool
}

func WithChecksum(h hash.Hash, expected string) Option {
	return func(opts *options) error {
		if h == nil {
			return errors.New("hash must not be nil")
		}

		if expected == "" {
			return errors.New("expected checksum must not be empty")
		}

		opts.checksum = &checksumVerifier{hash: h, expected: expected}
		return nil
	}
}

func WithProgress() Option {
	return func(opts *options) error {
		opts.progress = true
		return nil
	}
}
