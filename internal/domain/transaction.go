package domain

import "time"

// идентификатор счета: id игрока либо BankAccount
type AccountID = int64

// псевдо-счет банка, баланс не хранится и не ограничен
const BankAccount AccountID = 0

// неизменяемая запись о переводе денег, журнал только дописывается
type TransactionRecord struct {
	ID        string          `db:"id" json:"id"`
	LobbyID   int64           `db:"lobby_id" json:"lobby_id"`
	Amount    int64           `db:"amount" json:"amount"`
	From      AccountID       `db:"from_account" json:"from"`
	To        AccountID       `db:"to_account" json:"to"`
	Type      TransactionType `db:"type" json:"type"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// тип перевода
type TransactionType string

const (
	// движение по карте
	TransactionSalary TransactionType = "salary"

	// обязательные действия
	TransactionRent    TransactionType = "rent"
	TransactionTax     TransactionType = "tax"
	TransactionChance  TransactionType = "chance"
	TransactionCivic   TransactionType = "civic"
	TransactionTransit TransactionType = "transit"
	TransactionStart   TransactionType = "start"
	TransactionLoan    TransactionType = "loan"

	// дома
	TransactionAuction TransactionType = "auction"
	TransactionUpgrade TransactionType = "upgrade"
)

// IsBank сообщает, является ли счет банком
func IsBank(id AccountID) bool {
	return id == BankAccount
}
