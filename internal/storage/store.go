package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/options_tracker/internal/models"
)

// State is everything the ledger persists.
type State struct {
	Accounts        []models.Account
	Positions       []models.OptionStrategy
	ClosedPositions []models.OptionStrategy
	PLHistory       []models.PLHistoryData
	ManualWatchlist []string
	PriceAlerts     []models.PriceAlert
	Settings        models.ProviderSettings
}

// Store maps ledger state onto KV keys.
type Store struct {
	kv     KV
	logger *logrus.Logger
}

// NewStore wraps kv. A nil logger falls back to the logrus standard logger.
func NewStore(kv KV, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{kv: kv, logger: logger}
}

// LoadState reads every key independently. A key that cannot be read or
// decoded is logged, deleted and replaced by its empty default; the other keys
// still load. It never fails.
func (s *Store) LoadState() State {
	var st State
	loadJSON(s, KeyAccounts, &st.Accounts)
	loadJSON(s, KeyPositions, &st.Positions)
	loadJSON(s, KeyClosedPositions, &st.ClosedPositions)
	loadJSON(s, KeyPLHistory, &st.PLHistory)
	loadJSON(s, KeyManualWatchlist, &st.ManualWatchlist)
	loadJSON(s, KeyPriceAlerts, &st.PriceAlerts)
	loadJSON(s, KeyAPIKeys, &st.Settings.Keys)
	st.Settings.Provider = s.loadProvider()

	if st.Accounts == nil {
		st.Accounts = []models.Account{}
	}
	if st.Positions == nil {
		st.Positions = []models.OptionStrategy{}
	}
	if st.ClosedPositions == nil {
		st.ClosedPositions = []models.OptionStrategy{}
	}
	if st.PLHistory == nil {
		st.PLHistory = []models.PLHistoryData{}
	}
	if st.ManualWatchlist == nil {
		st.ManualWatchlist = []string{}
	}
	if st.PriceAlerts == nil {
		st.PriceAlerts = []models.PriceAlert{}
	}
	return st
}

func loadJSON[T any](s *Store, key string, dst *T) {
	raw, found, err := s.kv.Get(key)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Failed to read stored value, using default")
		return
	}
	if !found {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		s.discard(key, err)
		return
	}
	*dst = v
}

func (s *Store) loadProvider() models.ProviderName {
	raw, found, err := s.kv.Get(KeyAPIProvider)
	if err != nil {
		s.logger.WithError(err).WithField("key", KeyAPIProvider).Warn("Failed to read stored value, using default")
		return models.ProviderAlphaVantage
	}
	if !found {
		return models.ProviderAlphaVantage
	}
	// Older exports stored the name JSON-encoded.
	name := models.ProviderName(strings.Trim(strings.TrimSpace(string(raw)), `"`))
	if !name.Valid() {
		s.discard(KeyAPIProvider, fmt.Errorf("unknown provider %q", name))
		return models.ProviderAlphaVantage
	}
	return name
}

func (s *Store) discard(key string, cause error) {
	s.logger.WithError(cause).WithField("key", key).Warn("Discarding corrupted stored value")
	if err := s.kv.Delete(key); err != nil {
		s.logger.WithError(err).WithField("key", key).Error("Failed to delete corrupted stored value")
	}
}

// Save marshals value as JSON and writes it under key.
func (s *Store) Save(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", key, err)
	}
	if err := s.kv.Set(key, data); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}

// SaveProvider writes the provider name as a raw string.
func (s *Store) SaveProvider(name models.ProviderName) error {
	if err := s.kv.Set(KeyAPIProvider, []byte(name)); err != nil {
		return fmt.Errorf("saving %s: %w", KeyAPIProvider, err)
	}
	return nil
}

// Close closes the underlying KV.
func (s *Store) Close() error {
	return s.kv.Close()
}
