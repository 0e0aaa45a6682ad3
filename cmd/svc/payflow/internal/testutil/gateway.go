package testutil

import (
	"context"
	"testing"

	"github.com/sprucehealth/payflow/cmd/svc/payflow/internal/gateway"
	"github.com/sprucehealth/payflow/libs/testhelpers/mock"
)

// MockGateway is an expectation based mock of gateway.Gateway.
type MockGateway struct {
	*mock.Expector
}

var _ gateway.Gateway = &MockGateway{}

func NewMockGateway(t *testing.T) *MockGateway {
	return &MockGateway{&mock.Expector{T: t}}
}

func (g *MockGateway) CreateSingleUseToken(ctx context.Context, card *gateway.CardFields) (string, error) {
	rets := g.Record(card)
	if len(rets) == 0 {
		return "", nil
	}
	return rets[0].(string), mock.SafeError(rets[1])
}

func (g *MockGateway) Authorize(ctx context.Context, accountID string, params *gateway.AuthorizationParams) (*gateway.Authorization, error) {
	rets := g.Record(accountID, params)
	if len(rets) == 0 {
		return nil, nil
	}
	var auth *gateway.Authorization
	if rets[0] != nil {
		auth = rets[0].(*gateway.Authorization)
	}
	return auth, mock.SafeError(rets[1])
}

func (g *MockGateway) CreateCustomerProfile(ctx context.Context, params *gateway.ProfileParams) (*gateway.Profile, error) {
	rets := g.Record(params)
	if len(rets) == 0 {
		return nil, nil
	}
	var profile *gateway.Profile
	if rets[0] != nil {
		profile = rets[0].(*gateway.Profile)
	}
	return profile, mock.SafeError(rets[1])
}

func (g *MockGateway) CustomerProfile(ctx context.Context, profileID string) (*gateway.Profile, error) {
	rets := g.Record(profileID)
	if len(rets) == 0 {
		return nil, nil
	}
	var profile *gateway.Profile
	if rets[0] != nil {
		profile = rets[0].(*gateway.Profile)
	}
	return profile, mock.SafeError(rets[1])
}

func (g *MockGateway) ConvertTokenToCard(ctx context.Context, profileID, singleUseToken string) (*gateway.Card, error) {
	rets := g.Record(profileID, singleUseToken)
	if len(rets) == 0 {
		return nil, nil
	}
	var card *gateway.Card
	if rets[0] != nil {
		card = rets[0].(*gateway.Card)
	}
	return card, mock.SafeError(rets[1])
}

func (g *MockGateway) DeleteCardFromProfile(ctx context.Context, profileID, cardID string) error {
	rets := g.Record(profileID, cardID)
	if len(rets) == 0 {
		return nil
	}
	return mock.SafeError(rets[0])
}

func (g *MockGateway) TestConnection(ctx context.Context, creds *gateway.Credentials) (*gateway.ConnectionStatus, error) {
	rets := g.Record(creds)
	if len(rets) == 0 {
		return nil, nil
	}
	var status *gateway.ConnectionStatus
	if rets[0] != nil {
		status = rets[0].(*gateway.ConnectionStatus)
	}
	return status, mock.SafeError(rets[1])
}
