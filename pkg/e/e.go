package e

import "fmt"

var (
	// Внутренние ошибки хранилища
	ErrTransactionNotFound = fmt.Errorf("transaction not found")
	ErrRecordNotFound      = fmt.Errorf("record not found")
	ErrUnknownLimitType    = fmt.Errorf("unknown limit type")

	// Ошибки конфигурации
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")
	ErrUnknownStoreDriver   = fmt.Errorf("unknown store driver")

	// 400 Bad Request
	ErrStatusBadRequest = fmt.Errorf("bad request")
	ErrInvalidPrice     = fmt.Errorf("invalid price")
	ErrPricePrecision   = fmt.Errorf("price must have at most 2 decimal places")
	ErrMissingUserID    = fmt.Errorf("missing user id")

	// 500 Internal Server Error
	ErrInternalServerError = fmt.Errorf("internal server error")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
