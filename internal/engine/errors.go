package engine

import (
	"errors"
	"fmt"
)

// Kind categorises engine errors.
type Kind string

const (
	// KindConfiguration: the campaign definition is unusable (split does
	// not sum to 100, no control, ...). Raised at creation time.
	KindConfiguration Kind = "configuration error"

	// KindInsufficientData: analysis needs at least two variants, each
	// with participants. Nothing is persisted.
	KindInsufficientData Kind = "insufficient data"

	// KindAlreadyTerminal: the campaign is completed or cancelled.
	KindAlreadyTerminal Kind = "already terminal"

	// KindInvalidTransition: the requested status change is not allowed
	// from the campaign's current status.
	KindInvalidTransition Kind = "invalid transition"

	// KindUnknownVariant: a label does not belong to the campaign.
	KindUnknownVariant Kind = "unknown variant"
)

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrConfiguration     = errors.New(string(KindConfiguration))
	ErrInsufficientData  = errors.New(string(KindInsufficientData))
	ErrAlreadyTerminal   = errors.New(string(KindAlreadyTerminal))
	ErrInvalidTransition = errors.New(string(KindInvalidTransition))
	ErrUnknownVariant    = errors.New(string(KindUnknownVariant))

	// ErrInsufficientVariants is wrapped by the insufficient-data error
	// Analyze returns for campaigns with fewer than two variants.
	ErrInsufficientVariants = errors.New("fewer than two variants")
)

// Error is the engine's error type.
type Error struct {
	Kind       Kind
	Op         string
	CampaignID string
	Msg        string
	Err        error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	switch {
	case e.Op != "" && e.CampaignID != "":
		return fmt.Sprintf("%s campaign %s: %s", e.Op, e.CampaignID, msg)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	return target == kindSentinel(e.Kind)
}

func kindSentinel(k Kind) error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindInsufficientData:
		return ErrInsufficientData
	case KindAlreadyTerminal:
		return ErrAlreadyTerminal
	case KindInvalidTransition:
		return ErrInvalidTransition
	case KindUnknownVariant:
		return ErrUnknownVariant
	}
	return nil
}

// IsConfigurationError uses errors.Is to handle wrapped errors.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

func IsAlreadyTerminal(err error) bool {
	return errors.Is(err, ErrAlreadyTerminal)
}

func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

func IsUnknownVariant(err error) bool {
	return errors.Is(err, ErrUnknownVariant)
}

func configError(op, campaignID, msg string) *Error {
	return &Error{Kind: KindConfiguration, Op: op, CampaignID: campaignID, Msg: msg}
}
