package board

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"property_game/internal/domain"
	"property_game/internal/logger"

	"gopkg.in/yaml.v3"
)

// сохраняет справочные данные карты
type MapSaver interface {
	SaveMap(ctx context.Context, b *domain.Board) error
}

// Parse читает карту из YAML.
// Если ни у одной клетки не задан index, индексы берутся по порядку;
// клетка без next ведет в следующую по кругу.
func Parse(data []byte) (*domain.Board, error) {
	var b domain.Board
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse map: %w", err)
	}

	autoIndex := true
	for _, c := range b.Cases {
		if c.Index != 0 {
			autoIndex = false
			break
		}
	}
	n := len(b.Cases)
	for i := range b.Cases {
		if autoIndex {
			b.Cases[i].Index = i
		}
		if len(b.Cases[i].Next) == 0 && n > 0 {
			b.Cases[i].Next = []int{(i + 1) % n}
		}
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Load читает и проверяет одну карту
func Load(path string) (*domain.Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map: %w", err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return b, nil
}

// LoadDir читает все *.yaml и *.yml каталога в порядке имен
func LoadDir(dir string) ([]*domain.Board, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		found, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	sort.Strings(paths)

	boards := make([]*domain.Board, 0, len(paths))
	for _, p := range paths {
		b, err := Load(p)
		if err != nil {
			return nil, err
		}
		boards = append(boards, b)
	}
	return boards, nil
}

// Seed сохраняет карты каталога в хранилище
func Seed(ctx context.Context, store MapSaver, dir string) (int, error) {
	boards, err := LoadDir(dir)
	if err != nil {
		return 0, err
	}
	for _, b := range boards {
		if err := store.SaveMap(ctx, b); err != nil {
			return 0, fmt.Errorf("save map %q: %w", b.Name, err)
		}
		logger.Component("board").Info("карта загружена", "id", b.ID, "name", b.Name, "cases", len(b.Cases))
	}
	return len(boards), nil
}
