// Package vault manages saved cards: processor customer profiles, single
// use token conversion, and the local records that make saved cards
// discoverable.
package vault

import (
	"context"

	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/cards"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/dal"
	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/gateway"
	"github.com/sprucehealth/payflow/libs/errors"
	"github.com/sprucehealth/payflow/libs/golog"
)

// User identifies the owner of a vaulted card.
type User struct {
	ID    string
	Email string
	Name  string
}

// Manager coordinates processor side and local vault state.
type Manager struct {
	gw gateway.Gateway
	d  dal.DAL
}

func New(gw gateway.Gateway, d dal.DAL) *Manager {
	return &Manager{gw: gw, d: d}
}

// SaveCard converts a single use token into a permanent card on the user's
// processor profile and records it locally. It is strictly best effort: the
// payment this follows has already completed, so every failure here is
// logged and swallowed.
func (m *Manager) SaveCard(ctx context.Context, user *User, token *cards.Token) {
	card, err := m.saveCard(ctx, user, token)
	if err != nil {
		golog.Context("user_id", user.ID).Errorf("vault: failed to save card: %s", err)
		return
	}
	golog.Context("user_id", user.ID, "card_id", card.ID).Infof("vault: card saved")
}

func (m *Manager) saveCard(ctx context.Context, user *User, token *cards.Token) (*dal.Card, error) {
	profileID, err := m.ensureProfile(ctx, user)
	if err != nil {
		return nil, errors.Trace(err)
	}
	converted, err := m.gw.ConvertTokenToCard(ctx, profileID, token.Value)
	if err != nil {
		return nil, errors.Trace(err)
	}
	brand := converted.Brand
	if brand == "" {
		brand = token.Brand
	}
	last4 := converted.Last4
	if last4 == "" {
		last4 = token.Last4
	}
	card := &dal.Card{
		UserID:       user.ID,
		ProfileID:    profileID,
		CardID:       converted.ID,
		PaymentToken: converted.PaymentToken,
		Brand:        brand,
		Last4:        last4,
		ExpMonth:     converted.ExpMonth,
		ExpYear:      converted.ExpYear,
	}
	id, err := m.d.InsertCard(card)
	if err != nil {
		return nil, errors.Trace(err)
	}
	card.ID = id
	return card, nil
}

// ensureProfile returns the id of a processor profile that is valid right
// now for the user, creating one when none exists. A stored id that no
// longer resolves at the processor is discarded and replaced. Two
// concurrent first saves can both create a remote profile; the insert is
// first-writer-wins and the stored id is re-read so both requests end up
// on the same profile.
func (m *Manager) ensureProfile(ctx context.Context, user *User) (string, error) {
	stored, err := m.d.ProfileForUser(user.ID)
	if err == nil {
		if _, err := m.gw.CustomerProfile(ctx, stored.ProfileID); err == nil {
			return stored.ProfileID, nil
		} else if !gateway.IsNotFound(err) {
			return "", errors.Trace(err)
		}
		golog.Context("user_id", user.ID, "profile_id", stored.ProfileID).Warningf("vault: stored profile no longer exists at processor, recreating")
		if err := m.d.DeleteProfile(user.ID); err != nil {
			return "", errors.Trace(err)
		}
	} else if errors.Cause(err) != dal.ErrNotFound {
		return "", errors.Trace(err)
	}

	profile, err := m.gw.CreateCustomerProfile(ctx, &gateway.ProfileParams{
		UserRef:     user.ID,
		Email:       user.Email,
		Description: user.Name,
	})
	if err != nil {
		return "", errors.Trace(err)
	}
	if err := m.d.UpsertProfile(user.ID, profile.ID); err != nil {
		return "", errors.Trace(err)
	}
	stored, err = m.d.ProfileForUser(user.ID)
	if err != nil {
		return "", errors.Trace(err)
	}
	if stored.ProfileID != profile.ID {
		golog.Context("user_id", user.ID).Infof("vault: lost profile create race, using stored profile")
	}
	return stored.ProfileID, nil
}

// Card fetches one of the user's vaulted cards.
func (m *Manager) Card(ctx context.Context, userID string, id int64) (*dal.Card, error) {
	card, err := m.d.Card(userID, id)
	return card, errors.Trace(err)
}

// Cards lists the user's vaulted cards.
func (m *Manager) Cards(ctx context.Context, userID string) ([]*dal.Card, error) {
	cs, err := m.d.CardsForUser(userID)
	return cs, errors.Trace(err)
}

// DeleteCard removes a vaulted card. The processor side delete is best
// effort; the local record is removed regardless so the delete always
// appears to succeed for the user.
func (m *Manager) DeleteCard(ctx context.Context, userID string, id int64) error {
	card, err := m.d.Card(userID, id)
	if errors.Cause(err) == dal.ErrNotFound {
		return errors.Trace(dal.ErrNotFound)
	}
	if err != nil {
		return errors.Trace(err)
	}
	if err := m.gw.DeleteCardFromProfile(ctx, card.ProfileID, card.CardID); err != nil && !gateway.IsNotFound(err) {
		golog.Context("user_id", userID, "card_id", card.CardID).Errorf("vault: remote card delete failed: %s", err)
	}
	if _, err := m.d.DeleteCard(userID, id); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// MakeDefault marks one of the user's cards as their default.
func (m *Manager) MakeDefault(ctx context.Context, userID string, id int64) error {
	if _, err := m.d.Card(userID, id); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(m.d.SetDefaultCard(userID, id))
}
