package service

import (
	"crypto/rand"
	"math/big"
)

// источник случайности для кубиков и развилок
type Randomizer interface {
	// Intn возвращает число в [0, n)
	Intn(n int) int
}

// криптографически безопасный источник
type secureRand struct{}

// NewSecureRand возвращает Randomizer на crypto/rand
func NewSecureRand() Randomizer {
	return secureRand{}
}

func (secureRand) Intn(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// запасной вариант - никогда не должно происходить
		return 0
	}
	return int(v.Int64())
}
