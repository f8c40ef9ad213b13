package tickets

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgetix/reconcile/pkg/db/models"
	dbtypes "github.com/lodgetix/reconcile/pkg/db/types"
	"github.com/lodgetix/reconcile/pkg/enums"
)

type fakeReferenceLookup struct {
	byID  map[string]*models.EventTicket
	calls int
}

func (f *fakeReferenceLookup) GetByEventTicketID(_ context.Context, eventTicketID string) (*models.EventTicket, error) {
	f.calls++
	return f.byID[eventTicketID], nil
}

func newTestTransformer(t *testing.T, refs *fakeReferenceLookup) *Transformer {
	t.Helper()
	transformer, err := NewTransformer(refs)
	require.NoError(t, err)
	return transformer
}

func individualImport(data dbtypes.JSONMap) *models.RegistrationImport {
	return &models.RegistrationImport{
		RegistrationID:   uuid.New(),
		RegistrationType: enums.RegistrationTypeIndividual,
		Data:             data,
	}
}

func TestExtractExpandsQuantityIntoUnitRows(t *testing.T) {
	refs := &fakeReferenceLookup{byID: map[string]*models.EventTicket{
		"et-gala": {EventTicketID: "et-gala", Name: "Gala Dinner", Price: decimal.NewFromFloat(150)},
	}}
	transformer := newTestTransformer(t, refs)

	reg := &models.RegistrationImport{
		RegistrationID:   uuid.New(),
		RegistrationType: enums.RegistrationTypeLodge,
		Data: dbtypes.JSONMap{
			"lodgeId": "lodge-77",
			"selectedTickets": []any{
				map[string]any{"eventTicketsId": "et-gala", "quantity": float64(3)},
			},
		},
	}

	result, err := transformer.Extract(context.Background(), reg)
	require.NoError(t, err)
	require.Len(t, result.Tickets, 3)
	for _, ticket := range result.Tickets {
		assert.Equal(t, 1, ticket.Quantity)
		assert.Equal(t, "Gala Dinner", ticket.Name)
		assert.True(t, ticket.Price.Equal(decimal.NewFromFloat(150)))
		assert.Equal(t, enums.TicketOwnerTypeLodge, ticket.OwnerType)
		assert.Equal(t, "lodge-77", ticket.OwnerID)
		assert.Equal(t, enums.TicketStatusSold, ticket.Status)
	}
	require.Len(t, result.Resolutions, 1)
	assert.Equal(t, ResolutionResolved, result.Resolutions[0].Outcome)
}

func TestExtractPreservesAttendeeOwnership(t *testing.T) {
	refs := &fakeReferenceLookup{byID: map[string]*models.EventTicket{
		"et-cer": {EventTicketID: "et-cer", Name: "Ceremony", Price: decimal.NewFromFloat(75)},
	}}
	transformer := newTestTransformer(t, refs)

	reg := individualImport(dbtypes.JSONMap{
		"registrationData": map[string]any{
			"attendees": []any{
				map[string]any{
					"attendeeId": "att-1",
					"tickets": []any{
						map[string]any{"eventTicketId": "et-cer"},
					},
				},
				map[string]any{
					"attendeeId": "att-2",
					"tickets": []any{
						map[string]any{"event_ticket_id": "et-cer"},
					},
				},
			},
		},
	})

	result, err := transformer.Extract(context.Background(), reg)
	require.NoError(t, err)
	require.Len(t, result.Tickets, 2)
	assert.Equal(t, enums.TicketOwnerTypeAttendee, result.Tickets[0].OwnerType)
	assert.Equal(t, "att-1", result.Tickets[0].OwnerID)
	assert.Equal(t, "att-2", result.Tickets[1].OwnerID)
	assert.Equal(t, 1, refs.calls, "reference lookup should be cached per event ticket id")
}

func TestExtractExistingTicketsArrayWinsAndIsIdempotent(t *testing.T) {
	refs := &fakeReferenceLookup{byID: map[string]*models.EventTicket{}}
	transformer := newTestTransformer(t, refs)

	reg := individualImport(dbtypes.JSONMap{
		"tickets": []any{
			map[string]any{
				"name":       "Farewell Brunch",
				"price":      float64(45.50),
				"ownerType":  "attendee",
				"attendeeId": "att-9",
			},
		},
		"selectedTickets": []any{
			map[string]any{"eventTicketsId": "et-ignored", "quantity": float64(5)},
		},
	})

	first, err := transformer.Extract(context.Background(), reg)
	require.NoError(t, err)
	require.Len(t, first.Tickets, 1)
	assert.Equal(t, "Farewell Brunch", first.Tickets[0].Name)
	assert.True(t, first.Tickets[0].Price.Equal(decimal.NewFromFloat(45.50)))
	assert.Equal(t, "att-9", first.Tickets[0].OwnerID)

	second, err := transformer.Extract(context.Background(), reg)
	require.NoError(t, err)
	require.Len(t, second.Tickets, 1)
	assert.Equal(t, first.Tickets[0].Name, second.Tickets[0].Name)
	assert.Equal(t, first.Tickets[0].OwnerID, second.Tickets[0].OwnerID)
}

func TestExtractFallsBackWhenReferenceMissing(t *testing.T) {
	refs := &fakeReferenceLookup{byID: map[string]*models.EventTicket{}}
	transformer := newTestTransformer(t, refs)

	reg := individualImport(dbtypes.JSONMap{
		"selectedTickets": []any{
			map[string]any{
				"ticketDefinitionId": "et-unknown",
				"name":               "Legacy Banquet",
				"price":              map[string]any{"$numberDecimal": "120.00"},
				"attendeeId":         "att-3",
			},
		},
	})

	result, err := transformer.Extract(context.Background(), reg)
	require.NoError(t, err)
	require.Len(t, result.Tickets, 1)
	assert.Equal(t, "Legacy Banquet", result.Tickets[0].Name)
	assert.True(t, result.Tickets[0].Price.Equal(decimal.RequireFromString("120.00")))

	require.Len(t, result.Resolutions, 1)
	assert.Equal(t, ResolutionFallback, result.Resolutions[0].Outcome)
	assert.Contains(t, result.Resolutions[0].Reason, "et-unknown")
}

func TestExtractLodgeOwnerFallbackChain(t *testing.T) {
	refs := &fakeReferenceLookup{byID: map[string]*models.EventTicket{}}
	transformer := newTestTransformer(t, refs)

	regID := uuid.New()
	cases := []struct {
		name  string
		data  dbtypes.JSONMap
		owner string
	}{
		{
			name: "organisation id when no lodge id",
			data: dbtypes.JSONMap{
				"organisationId": "org-5",
				"selectedTickets": []any{
					map[string]any{"name": "Dinner", "price": float64(10)},
				},
			},
			owner: "org-5",
		},
		{
			name: "registration id as last resort",
			data: dbtypes.JSONMap{
				"selectedTickets": []any{
					map[string]any{"name": "Dinner", "price": float64(10)},
				},
			},
			owner: regID.String(),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := &models.RegistrationImport{
				RegistrationID:   regID,
				RegistrationType: enums.RegistrationTypeLodge,
				Data:             tc.data,
			}
			result, err := transformer.Extract(context.Background(), reg)
			require.NoError(t, err)
			require.Len(t, result.Tickets, 1)
			assert.Equal(t, enums.TicketOwnerTypeLodge, result.Tickets[0].OwnerType)
			assert.Equal(t, tc.owner, result.Tickets[0].OwnerID)
		})
	}
}
