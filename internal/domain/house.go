package domain

// состояние продажи дома
type HouseState string

const (
	HouseFree    HouseState = "free"
	HouseForSale HouseState = "for_sale"
	HouseOwned   HouseState = "owned"
)

// максимальный уровень дома
const MaxHouseLevel = 3

// дефекты дома, битовые флаги
const (
	DefectRoof   = 1 << iota
	DefectWater
	DefectWiring
)

// дом на клетке карты в конкретном лобби
type House struct {
	LobbyID       int64      `db:"lobby_id" json:"lobby_id"`
	Position      int        `db:"position" json:"position"`
	OwnerID       AccountID  `db:"owner_id" json:"owner_id"`           // BankAccount - свободен
	NextOwnerID   AccountID  `db:"next_owner_id" json:"next_owner_id"` // лучшая ставка аукциона
	Level         int        `db:"level" json:"level"`
	AuctionAmount int64      `db:"auction_amount" json:"auction_amount"` // не ноль только пока есть ставка
	State         HouseState `db:"state" json:"state"`
	Defects       int        `db:"defects" json:"defects"`
}

// IsFree сообщает, что у дома нет владельца
func (h *House) IsFree() bool {
	return IsBank(h.OwnerID)
}

// HasBid сообщает, что на дом поставили
func (h *House) HasBid() bool {
	return !IsBank(h.NextOwnerID) && h.AuctionAmount > 0
}

// ClearAuction сбрасывает поля аукциона
func (h *House) ClearAuction() {
	h.NextOwnerID = BankAccount
	h.AuctionAmount = 0
}
