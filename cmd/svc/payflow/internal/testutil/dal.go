// Package testutil provides expectation based mocks shared by the service
// tests.
package testutil

import (
	"testing"

	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/dal"
	"github.com/sprucehealth/payflow/libs/testhelpers/mock"
)

// MockDAL is an expectation based mock of dal.DAL.
type MockDAL struct {
	*mock.Expector
}

var _ dal.DAL = &MockDAL{}

func NewMockDAL(t *testing.T) *MockDAL {
	return &MockDAL{&mock.Expector{T: t}}
}

// Transact is not recorded; it runs trans against the mock directly.
func (d *MockDAL) Transact(trans func(dal dal.DAL) error) error {
	return trans(d)
}

func (d *MockDAL) UpsertProfile(userID, profileID string) error {
	rets := d.Record(userID, profileID)
	if len(rets) == 0 {
		return nil
	}
	return mock.SafeError(rets[0])
}

func (d *MockDAL) ProfileForUser(userID string) (*dal.Profile, error) {
	rets := d.Record(userID)
	if len(rets) == 0 {
		return nil, nil
	}
	var profile *dal.Profile
	if rets[0] != nil {
		profile = rets[0].(*dal.Profile)
	}
	return profile, mock.SafeError(rets[1])
}

func (d *MockDAL) DeleteProfile(userID string) error {
	rets := d.Record(userID)
	if len(rets) == 0 {
		return nil
	}
	return mock.SafeError(rets[0])
}

func (d *MockDAL) InsertCard(card *dal.Card) (int64, error) {
	rets := d.Record(card)
	if len(rets) == 0 {
		return 0, nil
	}
	return rets[0].(int64), mock.SafeError(rets[1])
}

func (d *MockDAL) Card(userID string, id int64) (*dal.Card, error) {
	rets := d.Record(userID, id)
	if len(rets) == 0 {
		return nil, nil
	}
	var card *dal.Card
	if rets[0] != nil {
		card = rets[0].(*dal.Card)
	}
	return card, mock.SafeError(rets[1])
}

func (d *MockDAL) CardsForUser(userID string) ([]*dal.Card, error) {
	rets := d.Record(userID)
	if len(rets) == 0 {
		return nil, nil
	}
	var cards []*dal.Card
	if rets[0] != nil {
		cards = rets[0].([]*dal.Card)
	}
	return cards, mock.SafeError(rets[1])
}

func (d *MockDAL) DeleteCard(userID string, id int64) (int64, error) {
	rets := d.Record(userID, id)
	if len(rets) == 0 {
		return 0, nil
	}
	return rets[0].(int64), mock.SafeError(rets[1])
}

func (d *MockDAL) SetDefaultCard(userID string, id int64) error {
	rets := d.Record(userID, id)
	if len(rets) == 0 {
		return nil
	}
	return mock.SafeError(rets[0])
}
