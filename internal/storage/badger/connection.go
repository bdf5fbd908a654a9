// -----------------------------------------------------------------------
// History database - badgerhold store holding run records between batches
// -----------------------------------------------------------------------

package badger

import (
	"errors"
	"fmt"
	"os"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/modernizer/internal/common"
	"github.com/timshannon/badgerhold/v4"
)

// HistoryDB owns the run history store
type HistoryDB struct {
	store  *badgerhold.Store
	path   string
	logger arbor.ILogger
}

// OpenHistoryDB opens the run history at config.Path, creating it when missing.
// With ResetOnStartup the records of earlier batches are discarded first.
func OpenHistoryDB(logger arbor.ILogger, config *common.BadgerConfig) (*HistoryDB, error) {
	if config.Path == "" {
		return nil, errors.New("run history path is required")
	}

	if config.ResetOnStartup {
		discardHistory(logger, config.Path)
	}
	if err := os.MkdirAll(config.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run history directory: %w", err)
	}

	store, err := badgerhold.Open(historyOptions(config.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to open run history at %s: %w", config.Path, err)
	}

	logger.Debug().Str("path", config.Path).Msg("Run history opened")
	return &HistoryDB{store: store, path: config.Path, logger: logger}, nil
}

func historyOptions(dir string) badgerhold.Options {
	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil // badger's own logger bypasses arbor
	return options
}

func discardHistory(logger arbor.ILogger, path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := os.RemoveAll(path); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Failed to reset run history")
		return
	}
	logger.Info().Str("path", path).Msg("Run history reset (reset_on_startup=true)")
}

// Store returns the underlying badgerhold store
func (h *HistoryDB) Store() *badgerhold.Store {
	return h.store
}

// Path is the directory holding the history files
func (h *HistoryDB) Path() string {
	return h.path
}

// Close releases the store. Closing twice is a no-op.
func (h *HistoryDB) Close() error {
	if h.store == nil {
		return nil
	}
	err := h.store.Close()
	h.store = nil
	return err
}
