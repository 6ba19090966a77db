package ledger

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/options_tracker/internal/models"
	"github.com/eddiefleurent/options_tracker/internal/storage"
)

// Accounts returns a copy of all accounts.
func (l *Ledger) Accounts() []models.Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Account{}, l.accounts...)
}

// AddAccount creates an account.
func (l *Ledger) AddAccount(name, broker string) (models.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Account{}, invalid(fmt.Errorf("account name is required"))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acc := models.Account{ID: uuid.NewString(), Name: name, Broker: strings.TrimSpace(broker)}
	l.accounts = append(l.accounts, acc)
	l.logger.WithFields(logrus.Fields{"account": acc.ID, "name": acc.Name}).Info("Account added")
	return acc, l.persist(storage.KeyAccounts)
}

// DeleteAccount removes an account that no open or closed strategy references.
func (l *Ledger) DeleteAccount(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := -1
	for i, a := range l.accounts {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}

	for _, list := range [][]models.OptionStrategy{l.open, l.closed} {
		for _, s := range list {
			if s.AccountID == id {
				return &DomainError{Err: ErrAccountInUse}
			}
		}
	}

	l.accounts = append(l.accounts[:idx:idx], l.accounts[idx+1:]...)
	l.logger.WithField("account", id).Info("Account deleted")
	return l.persist(storage.KeyAccounts)
}
