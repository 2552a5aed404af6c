package cli

import (
	"errors"

	"healthdash/internal/gateway"
)

// TranslateError turns gateway errors into the CLI error types that carry
// exit codes and guidance. Other errors are returned unchanged.
func TranslateError(err error, endpoint string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gateway.ErrAuthorizationExpired) {
		return &AuthExpiredError{Endpoint: endpoint}
	}
	if errors.Is(err, gateway.ErrNetworkFailure) {
		cause := err
		if apiErr, ok := gateway.AsAPIError(err); ok && apiErr.Err != nil {
			cause = apiErr.Err
		}
		return ClassifyConnectionError(cause, endpoint)
	}
	return err
}
