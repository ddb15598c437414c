package mongo

import (
	"context"
	"errors"
	apperrors "tokenq/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	labelTransientTransaction = "TransientTransactionError"
	labelUnknownCommitResult  = "UnknownTransactionCommitResult"
	codeWriteConflict         = 112

	CommitStatusUnknown = "unknown"
)

// StoreError classifies a driver error into the service error taxonomy.
//
//   - transient transaction errors, write conflicts and duplicate keys:
//     TRANSACTION_CONFLICT, retryable
//   - unknown commit result: STORE_UNAVAILABLE, not retryable, since the
//     commit may have been applied
//   - network errors, timeouts, disconnected client: STORE_UNAVAILABLE, retryable
//   - anything else: INTERNAL_ERROR
func StoreError(message string, err error) error {
	if err == nil {
		return nil
	}
	if apperrors.IsAppError(err) {
		return err
	}

	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		switch {
		case serverErr.HasErrorLabel(labelUnknownCommitResult):
			appErr := apperrors.StoreUnavailable(message+": commit outcome unknown", err).
				WithDetail("commit_status", CommitStatusUnknown)
			appErr.Retryable = false
			return appErr
		case serverErr.HasErrorLabel(labelTransientTransaction),
			serverErr.HasErrorCode(codeWriteConflict):
			return apperrors.TransactionConflict(message, err)
		}
	}

	switch {
	case mongo.IsDuplicateKeyError(err):
		return apperrors.TransactionConflict(message+": duplicate key", err)
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, mongo.ErrClientDisconnected),
		mongo.IsNetworkError(err),
		mongo.IsTimeout(err):
		return apperrors.StoreUnavailable(message, err)
	case errors.Is(err, context.Canceled):
		return apperrors.Timeout(message + ": request cancelled")
	}

	return apperrors.Internal(message, err)
}

// IsUnknownCommit reports whether err is a commit that may or may not have
// been applied.
func IsUnknownCommit(err error) bool {
	var appErr *apperrors.AppError
	return errors.As(err, &appErr) && appErr.Details["commit_status"] == CommitStatusUnknown
}
