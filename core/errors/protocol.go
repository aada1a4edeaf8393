package errors

import (
	stderrors "errors"
	"fmt"
)

// Code is the stable numeric identifier of a protocol error kind.
type Code uint32

const (
	CodeUnauthorized                Code = 1
	CodeInsufficientCollateral      Code = 2
	CodeInsufficientCollateralRatio Code = 3
	CodeInvalidAmount               Code = 4
	CodeInvalidAddress              Code = 5
	CodePositionNotFound            Code = 6
	CodeAlreadyInitialized          Code = 7
	CodeNotAdmin                    Code = 8
	CodeOracleNotSet                Code = 9
	CodeAdminNotSet                 Code = 10
	CodeNotEligibleForLiquidation   Code = 11
	CodeProtocolPaused              Code = 12
	CodeAssetNotSupported           Code = 13
	CodeAssetDisabled               Code = 14
	CodeInvalidAsset                Code = 15
	CodeUnknown                     Code = 16
	CodeAlreadyExists               Code = 17
	CodeNotFound                    Code = 18
	CodeInvalidOperation            Code = 19
	CodeInvalidInput                Code = 20
)

// Kind is a protocol error carrying a stable code. Kinds are compared by
// identity, so wrapped errors should be matched with errors.Is.
type Kind struct {
	code Code
	msg  string
}

func newKind(code Code, msg string) *Kind {
	return &Kind{code: code, msg: msg}
}

func (k *Kind) Error() string { return k.msg }

// Code returns the numeric code associated with the kind.
func (k *Kind) Code() Code { return k.code }

var (
	ErrUnauthorized                = newKind(CodeUnauthorized, "unauthorized")
	ErrInsufficientCollateral      = newKind(CodeInsufficientCollateral, "insufficient collateral")
	ErrInsufficientCollateralRatio = newKind(CodeInsufficientCollateralRatio, "insufficient collateral ratio")
	ErrInvalidAmount               = newKind(CodeInvalidAmount, "invalid amount")
	ErrInvalidAddress              = newKind(CodeInvalidAddress, "invalid address")
	ErrPositionNotFound            = newKind(CodePositionNotFound, "position not found")
	ErrAlreadyInitialized          = newKind(CodeAlreadyInitialized, "already initialized")
	ErrNotAdmin                    = newKind(CodeNotAdmin, "caller is not an admin")
	ErrOracleNotSet                = newKind(CodeOracleNotSet, "oracle not set")
	ErrAdminNotSet                 = newKind(CodeAdminNotSet, "admin not set")
	ErrNotEligibleForLiquidation   = newKind(CodeNotEligibleForLiquidation, "position not eligible for liquidation")
	ErrProtocolPaused              = newKind(CodeProtocolPaused, "protocol paused")
	ErrAssetNotSupported           = newKind(CodeAssetNotSupported, "asset not supported")
	ErrAssetDisabled               = newKind(CodeAssetDisabled, "asset disabled")
	ErrInvalidAsset                = newKind(CodeInvalidAsset, "invalid asset")
	ErrUnknown                     = newKind(CodeUnknown, "unknown error")
	ErrAlreadyExists               = newKind(CodeAlreadyExists, "already exists")
	ErrNotFound                    = newKind(CodeNotFound, "not found")
	ErrInvalidOperation            = newKind(CodeInvalidOperation, "invalid operation")
	ErrInvalidInput                = newKind(CodeInvalidInput, "invalid input")
)

// CodeOf walks the wrap chain of err and returns the code of the first protocol
// kind found. Errors without a kind map to CodeUnknown; nil maps to zero.
func CodeOf(err error) Code {
	if err == nil {
		return 0
	}
	var kind *Kind
	if stderrors.As(err, &kind) {
		return kind.code
	}
	return CodeUnknown
}

// Wrap annotates kind with a formatted detail message while keeping it
// matchable through errors.Is.
func Wrap(kind *Kind, format string, args ...any) error {
	if kind == nil {
		kind = ErrUnknown
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}
