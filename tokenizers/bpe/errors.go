package bpe

import "github.com/pkg/errors"

var (
	// ErrInvalidConfig is returned by Train for malformed parameters, like a negative vocabulary size.
	ErrInvalidConfig = errors.New("bpe: invalid training configuration")

	// ErrModelLoad is returned (wrapped) when a persisted model is malformed or internally
	// inconsistent. Such a model must never be used, since every encode/decode would be wrong.
	ErrModelLoad = errors.New("bpe: malformed or inconsistent model")
)
