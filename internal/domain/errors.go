package domain

import "errors"

// виды ошибок ядра, сравниваются через errors.Is
var (
	ErrNotFound          = errors.New("запись не найдена")
	ErrInsufficientFunds = errors.New("недостаточно средств")
	ErrInvalidState      = errors.New("недопустимое состояние")
	ErrTransactionFailed = errors.New("транзакция не зафиксирована")
)
