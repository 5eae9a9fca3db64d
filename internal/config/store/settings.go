package store

import (
	"context"

	"github.com/voiceboard-ai/voiceboard/internal/board"
)

// LoadSettings returns the board settings, or zero settings when none have
// been saved yet. A fresh install is indistinguishable from an unconfigured
// one; the engine reports the missing credential at activation time.
func (s *Store) LoadSettings(ctx context.Context) (board.Settings, error) {
	var settings board.Settings
	err := s.GetJSON(ctx, KeySettings, &settings)
	if IsNotFound(err) {
		return board.Settings{}, nil
	}
	if err != nil {
		return board.Settings{}, err
	}
	return settings, nil
}

// SaveSettings persists the board settings.
func (s *Store) SaveSettings(ctx context.Context, settings board.Settings) error {
	return s.SetJSON(ctx, KeySettings, settings)
}

// LoadGridData returns the grid configuration, or an empty grid when none
// has been saved.
func (s *Store) LoadGridData(ctx context.Context) (board.GridData, error) {
	var grid board.GridData
	err := s.GetJSON(ctx, KeyGridData, &grid)
	if IsNotFound(err) {
		return board.GridData{}, nil
	}
	if err != nil {
		return nil, err
	}
	if grid == nil {
		grid = board.GridData{}
	}
	return grid, nil
}

// SaveGridData persists the grid configuration.
func (s *Store) SaveGridData(ctx context.Context, grid board.GridData) error {
	return s.SetJSON(ctx, KeyGridData, grid)
}
