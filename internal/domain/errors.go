package domain

// errors.go defines domain-specific error types.
type domainErr struct {
	message string
}

// Error returns the error message.
func (e domainErr) Error() string {
	return e.message
}

// ValidationErr represents an error when validation fails.
type ValidationErr struct {
	domainErr
}

// NewValidationErr creates a new ValidationErr with the given message.
func NewValidationErr(message string) *ValidationErr {
	return &ValidationErr{
		domainErr: domainErr{message: message},
	}
}

// ConfigurationErr represents a fatal startup error caused by missing or invalid settings.
type ConfigurationErr struct {
	domainErr
}

// NewConfigurationErr creates a new ConfigurationErr with the given message.
func NewConfigurationErr(message string) *ConfigurationErr {
	return &ConfigurationErr{
		domainErr: domainErr{message: message},
	}
}

// TokenAcquisitionErr represents a failure to obtain a bearer token from the identity service.
// The token cache stays empty after this error so the next caller retries.
type TokenAcquisitionErr struct {
	domainErr
}

// NewTokenAcquisitionErr creates a new TokenAcquisitionErr with the given message.
func NewTokenAcquisitionErr(message string) *TokenAcquisitionErr {
	return &TokenAcquisitionErr{
		domainErr: domainErr{message: message},
	}
}
